package health

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/hutch/pkg/audit"
)

// stubChecker flips between healthy and unhealthy on demand.
type stubChecker struct {
	name string
	err  error
}

func (s *stubChecker) Name() string { return s.name }
func (s *stubChecker) Check() error { return s.err }

func TestStatus_Update(t *testing.T) {
	status := NewStatus()
	if !status.Healthy {
		t.Error("Expected new status to start healthy")
	}

	failed := Result{Name: "stub", Healthy: false, CheckedAt: time.Now()}

	// Two failures with retries=3 should not flip the status yet
	status.Update(failed, 3)
	status.Update(failed, 3)
	if !status.Healthy {
		t.Error("Expected status to stay healthy below the retry threshold")
	}
	if status.ConsecutiveFailures != 2 {
		t.Errorf("Expected 2 consecutive failures, got %d", status.ConsecutiveFailures)
	}

	// Third failure crosses the threshold
	status.Update(failed, 3)
	if status.Healthy {
		t.Error("Expected status to flip unhealthy at the retry threshold")
	}

	// A single success recovers immediately
	status.Update(Result{Name: "stub", Healthy: true, CheckedAt: time.Now()}, 3)
	if !status.Healthy {
		t.Error("Expected status to recover after one success")
	}
	if status.ConsecutiveFailures != 0 {
		t.Errorf("Expected failure streak reset, got %d", status.ConsecutiveFailures)
	}
}

func TestHeartbeat_RunReturnsResultsInOrder(t *testing.T) {
	hb := NewHeartbeat(nil, 3,
		&stubChecker{name: "vault"},
		&stubChecker{name: "audit"},
	)

	results := hb.Run()

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Name != "vault" || results[1].Name != "audit" {
		t.Errorf("Expected registration order, got %s then %s", results[0].Name, results[1].Name)
	}
	for _, r := range results {
		if !r.Healthy {
			t.Errorf("Expected %s healthy, got: %s", r.Name, r.Message)
		}
		if r.Message != "ok" {
			t.Errorf("Expected ok message for %s, got %q", r.Name, r.Message)
		}
	}
}

func TestHeartbeat_FailureIsAudited(t *testing.T) {
	auditLog := audit.NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	broken := &stubChecker{name: "vault", err: errors.New("missing: In_Progress")}

	hb := NewHeartbeat(auditLog, 3, broken)
	results := hb.Run()

	if results[0].Healthy {
		t.Error("Expected unhealthy result from broken checker")
	}

	entries := auditLog.Tail(1)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 audit entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Op != audit.OpHeartbeatFail {
		t.Errorf("Expected heartbeat_fail op, got %s", entry.Op)
	}
	if entry.File != "system" || entry.Src != "cmd_loop" {
		t.Errorf("Expected system/cmd_loop, got %s/%s", entry.File, entry.Src)
	}
	if entry.Outcome != audit.OutcomeFailed {
		t.Errorf("Expected failed outcome, got %s", entry.Outcome)
	}
	if entry.Detail != "vault: missing: In_Progress" {
		t.Errorf("Unexpected detail: %q", entry.Detail)
	}
}

func TestHeartbeat_SuccessIsNotAudited(t *testing.T) {
	auditLog := audit.NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))

	hb := NewHeartbeat(auditLog, 3, &stubChecker{name: "vault"})
	hb.Run()

	if entries := auditLog.Tail(10); len(entries) != 0 {
		t.Errorf("Expected no audit entries for healthy run, got %d", len(entries))
	}
}

func TestHeartbeat_DampsTransientFailures(t *testing.T) {
	flaky := &stubChecker{name: "learning"}
	hb := NewHeartbeat(nil, 3, flaky)

	// One bad cycle between good ones
	hb.Run()
	flaky.err = errors.New("learning store unreachable")
	hb.Run()
	flaky.err = nil
	hb.Run()

	if !hb.Healthy() {
		t.Error("Expected heartbeat to stay healthy through a transient failure")
	}

	// Three consecutive failures cross the threshold
	flaky.err = errors.New("learning store unreachable")
	hb.Run()
	hb.Run()
	hb.Run()

	if hb.Healthy() {
		t.Error("Expected heartbeat unhealthy after sustained failures")
	}

	status := hb.StatusOf("learning")
	if status == nil {
		t.Fatal("Expected status for registered checker")
	}
	if status.ConsecutiveFailures != 3 {
		t.Errorf("Expected 3 consecutive failures, got %d", status.ConsecutiveFailures)
	}
}

func TestHeartbeat_StatusOfUnknown(t *testing.T) {
	hb := NewHeartbeat(nil, 3)
	if hb.StatusOf("nope") != nil {
		t.Error("Expected nil status for unknown subsystem")
	}
}

func TestHeartbeat_RegisterAfterConstruction(t *testing.T) {
	hb := NewHeartbeat(nil, 2)
	hb.Register(&stubChecker{name: "audit"})

	results := hb.Run()
	if len(results) != 1 || results[0].Name != "audit" {
		t.Fatalf("Expected the registered checker to run, got %v", results)
	}
}
