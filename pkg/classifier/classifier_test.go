package classifier

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/cuemby/hutch/pkg/vault"
)

func makeSteps(n int) []string {
	steps := make([]string, n)
	for i := range steps {
		steps[i] = fmt.Sprintf("- [ ] Step %d: Create file \"output%d.txt\"", i+1, i)
	}
	return steps
}

// newClassifier builds a classifier over a vault that already has its
// rollback archive.
func newClassifier(t *testing.T, allowed []string) (*Classifier, *audit.Log) {
	t.Helper()
	vaultDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(vaultDir, vault.FolderRollbackArchive), 0o755))
	auditLog := audit.NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	return New(vaultDir, allowed, 2, 10, auditLog), auditLog
}

func TestClassifySimpleAllGatesPass(t *testing.T) {
	c, auditLog := newClassifier(t, nil)

	label, gates := c.Classify("Create a file", makeSteps(3), nil)

	assert.Equal(t, types.ComplexitySimple, label)
	assert.Equal(t, GatePass, gates[GateStepCount])
	assert.Equal(t, GatePass, gates[GateCredentials])
	assert.Equal(t, GatePass, gates[GateDeterminism])
	assert.Equal(t, GatePass, gates[GatePermissions])
	assert.Equal(t, GatePass, gates[GateSLA])
	assert.Equal(t, GateSkippedSimple, gates[GateRollback])
	assert.Len(t, gates, 6)
	assert.Empty(t, auditLog.Filter(audit.OpGateBlocked, time.Time{}))
}

func TestClassifyManualReview(t *testing.T) {
	c, auditLog := newClassifier(t, nil)

	label, gates := c.Classify("Big task", makeSteps(20), nil)

	assert.Equal(t, types.ComplexityManualReview, label)
	assert.Equal(t, GateFailManualReview, gates[GateStepCount])
	for _, key := range []string{GateCredentials, GateDeterminism, GatePermissions, GateSLA, GateRollback} {
		assert.Equal(t, GateSkipped, gates[key], key)
	}

	entries := auditLog.Filter(audit.OpGateBlocked, time.Time{})
	require.Len(t, entries, 1)
	assert.Equal(t, "step_count", entries[0].Src)
	assert.Equal(t, "blocked:step_count:20", entries[0].Detail)
}

func TestClassifyExactlyFifteenStepsIsComplex(t *testing.T) {
	c, _ := newClassifier(t, nil)

	label, gates := c.Classify("Medium task", makeSteps(15), nil)

	assert.Equal(t, types.ComplexityComplex, label)
	assert.Equal(t, GatePass, gates[GateStepCount])
	assert.Equal(t, GatePass, gates[GateRollback])
}

func TestCredentialGateShortCircuits(t *testing.T) {
	c, auditLog := newClassifier(t, nil)

	label, gates := c.Classify("Task with password in it", makeSteps(3), nil)

	assert.Equal(t, types.ComplexityComplex, label)
	assert.Equal(t, GatePass, gates[GateStepCount])
	assert.Equal(t, GateFail, gates[GateCredentials])
	assert.Equal(t, GateSkipped, gates[GateDeterminism])
	assert.Equal(t, GateSkipped, gates[GatePermissions])
	assert.Equal(t, GateSkipped, gates[GateSLA])
	assert.Equal(t, GateSkipped, gates[GateRollback])

	entries := auditLog.Filter(audit.OpGateBlocked, time.Time{})
	require.Len(t, entries, 1)
	assert.Equal(t, "classifier", entries[0].File)
	assert.Equal(t, "credential_gate", entries[0].Src)
	assert.Equal(t, audit.OutcomeFlagged, entries[0].Outcome)
	assert.Equal(t, "blocked:credential_keyword:password", entries[0].Detail)
}

func TestDeterminismGate(t *testing.T) {
	c, auditLog := newClassifier(t, nil)

	label, gates := c.Classify("Normal task", []string{"- [ ] Download file from network"}, nil)

	assert.Equal(t, types.ComplexityComplex, label)
	assert.Equal(t, GatePass, gates[GateCredentials])
	assert.Equal(t, GateFail, gates[GateDeterminism])
	assert.Equal(t, GateSkipped, gates[GatePermissions])

	entries := auditLog.Filter(audit.OpGateBlocked, time.Time{})
	require.Len(t, entries, 1)
	assert.Equal(t, "determinism_gate", entries[0].Src)
	assert.Equal(t, "blocked:non_deterministic:download", entries[0].Detail)
}

func TestPermissionGate(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		content string
		want    types.Complexity
		gate    string
		detail  string
	}{
		{
			name:    "network ref with empty allowlist fails",
			content: "Call the http api endpoint",
			want:    types.ComplexityComplex,
			gate:    GateFail,
			detail:  "blocked:network_not_allowed",
		},
		{
			name:    "allowlisted service passes",
			allowed: []string{"myapi.com"},
			content: "Call the http myapi.com endpoint",
			want:    types.ComplexitySimple,
			gate:    GatePass,
		},
		{
			name:    "unknown service fails",
			allowed: []string{"myapi.com"},
			content: "Call the http evil.com endpoint",
			want:    types.ComplexityComplex,
			gate:    GateFail,
			detail:  "blocked:service_not_in_allowlist",
		},
		{
			name:    "absolute path outside vault fails",
			content: "Copy /etc/passwd to backup",
			want:    types.ComplexityComplex,
			gate:    GateFail,
			detail:  "blocked:outside_vault:/etc/passwd",
		},
		{
			name:    "vault-relative folder refs pass",
			content: "Move the result to /done/ after checking /plans/",
			want:    types.ComplexitySimple,
			gate:    GatePass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, auditLog := newClassifier(t, tt.allowed)

			label, gates := c.Classify(tt.content, makeSteps(3), nil)

			assert.Equal(t, tt.want, label)
			assert.Equal(t, tt.gate, gates[GatePermissions])
			if tt.detail != "" {
				entries := auditLog.Filter(audit.OpGateBlocked, time.Time{})
				require.Len(t, entries, 1)
				assert.Equal(t, "permission_gate", entries[0].Src)
				assert.Equal(t, tt.detail, entries[0].Detail)
			}
		})
	}
}

func TestPermissionGateAllowsPathsInsideVault(t *testing.T) {
	c, _ := newClassifier(t, nil)

	content := "Copy " + c.vaultRoot + "/Done/output.txt somewhere safe"
	label, gates := c.Classify(content, makeSteps(3), nil)

	assert.Equal(t, types.ComplexitySimple, label)
	assert.Equal(t, GatePass, gates[GatePermissions])
}

func TestSLAFeasibilityGate(t *testing.T) {
	vaultDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(vaultDir, vault.FolderRollbackArchive), 0o755))
	auditLog := audit.NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))

	// History of simple executions with a deadline tight enough that
	// the one-minute estimate exceeds 150% of it.
	auditLog.Append(audit.OpTaskExecuted, "old.md", "In_Progress", "Done",
		audit.OutcomeSuccess, "op:file_create complexity:simple")
	c := New(vaultDir, nil, 0.5, 10, auditLog)

	label, gates := c.Classify("Create a file", makeSteps(3), nil)

	assert.Equal(t, types.ComplexityComplex, label)
	assert.Equal(t, GateFail, gates[GateSLA])
	assert.Equal(t, GateSkipped, gates[GateRollback])

	blocked := auditLog.Filter(audit.OpGateBlocked, time.Time{})
	require.Len(t, blocked, 1)
	assert.Equal(t, "sla_feasibility", blocked[0].Src)
	assert.Contains(t, blocked[0].Detail, "blocked:estimated:1.0min")
}

func TestSLAFeasibilityNoHistoryPasses(t *testing.T) {
	vaultDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(vaultDir, vault.FolderRollbackArchive), 0o755))
	auditLog := audit.NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	c := New(vaultDir, nil, 0.5, 10, auditLog)

	label, gates := c.Classify("Create a file", makeSteps(3), nil)

	assert.Equal(t, types.ComplexitySimple, label)
	assert.Equal(t, GatePass, gates[GateSLA])
}

func TestRollbackGate(t *testing.T) {
	t.Run("missing archive fails complex candidates", func(t *testing.T) {
		vaultDir := t.TempDir()
		auditLog := audit.NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))
		c := New(vaultDir, nil, 2, 10, auditLog)

		label, gates := c.Classify("Create file", makeSteps(8), nil)

		assert.Equal(t, types.ComplexityComplex, label)
		assert.Equal(t, GateFail, gates[GateRollback])

		entries := auditLog.Filter(audit.OpGateBlocked, time.Time{})
		require.Len(t, entries, 1)
		assert.Equal(t, "rollback_readiness", entries[0].Src)
		assert.Equal(t, "blocked:rollback_archive_missing", entries[0].Detail)
	})

	t.Run("existing archive passes complex candidates", func(t *testing.T) {
		c, _ := newClassifier(t, nil)

		label, gates := c.Classify("Create file", makeSteps(8), nil)

		assert.Equal(t, types.ComplexityComplex, label)
		assert.Equal(t, GatePass, gates[GateRollback])
	})
}

func TestOverrideBypassesGates(t *testing.T) {
	c, auditLog := newClassifier(t, nil)
	task := &types.Task{Override: true, OverrideReason: "ops approved"}

	// Content that would fail the credential gate is ignored.
	label, gates := c.Classify("password reset task", makeSteps(3), task)

	assert.Equal(t, types.ComplexitySimple, label)
	for _, key := range []string{GateStepCount, GateCredentials, GateDeterminism, GatePermissions, GateSLA, GateRollback} {
		assert.Equal(t, GateSkipped, gates[key], key)
	}
	assert.Equal(t, "true", gates["override"])
	assert.Equal(t, "ops approved", gates["override_reason"])

	entries := auditLog.Filter(audit.OpOverrideApplied, time.Time{})
	require.Len(t, entries, 1)
	assert.Equal(t, "classifier", entries[0].File)
	assert.Equal(t, "override", entries[0].Src)
	assert.Equal(t, "reason:ops approved steps:3", entries[0].Detail)
}

func TestOverrideStillTiersOnStepCount(t *testing.T) {
	c, _ := newClassifier(t, nil)
	task := &types.Task{Override: true}

	label, gates := c.Classify("anything", makeSteps(8), task)

	assert.Equal(t, types.ComplexityComplex, label)
	assert.Equal(t, "none", gates["override_reason"])
}

func TestCountActionableSteps(t *testing.T) {
	steps := []string{"# Plan", "", "- [ ] One", "   ", "## Section", "- [ ] Two"}
	assert.Equal(t, 2, countActionableSteps(steps))
}
