package healing

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/graph"
	"github.com/cuemby/hutch/pkg/types"
)

func newEngine(t *testing.T, maxAttempts int) (*Engine, *audit.Log) {
	t.Helper()
	auditLog := audit.NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	return New(maxAttempts, auditLog), auditLog
}

// cascadeGraph returns a graph whose first step completed and whose
// second step names the third as its alternative.
func cascadeGraph() (*graph.Graph, *graph.Step) {
	steps := []*graph.Step{
		{ID: "s1", Name: "prepare", Priority: 1, Status: graph.StepCompleted},
		{ID: "s2", Name: "transform", Priority: 1, Status: graph.StepInProgress, AlternativeStep: "s3"},
		{ID: "s3", Name: "transform fallback", Priority: 2, Status: graph.StepPending},
	}
	g := graph.New("task-1", steps, nil)
	return g, steps[1]
}

func TestRecoverRetrySucceeds(t *testing.T) {
	e, auditLog := newEngine(t, 3)
	g, failed := cascadeGraph()

	attempts := e.Recover("task-1", failed, g, func(step *graph.Step) (bool, error) {
		return true, nil
	})

	require.Len(t, attempts, 1)
	assert.Equal(t, types.StrategyRetry, attempts[0].Strategy)
	assert.Equal(t, 1, attempts[0].AttemptNumber)
	assert.True(t, attempts[0].Succeeded())
	assert.Equal(t, "task-1", attempts[0].TaskID)
	assert.Equal(t, "s2", attempts[0].StepID)

	entries := auditLog.Filter(audit.OpSelfHealRetry, time.Time{})
	require.Len(t, entries, 1)
	assert.Equal(t, "self_heal", entries[0].Src)
	assert.Equal(t, audit.OutcomeSuccess, entries[0].Outcome)
	assert.Contains(t, entries[0].Detail, "strategy=retry outcome=success")
}

func TestRecoverFallsThroughToAlternative(t *testing.T) {
	e, auditLog := newEngine(t, 3)
	g, failed := cascadeGraph()

	var executed []string
	attempts := e.Recover("task-1", failed, g, func(step *graph.Step) (bool, error) {
		executed = append(executed, step.ID)
		return step.ID == "s3", nil
	})

	require.Len(t, attempts, 2)
	assert.Equal(t, []string{"s2", "s3"}, executed)
	assert.Equal(t, types.StrategyRetry, attempts[0].Strategy)
	assert.False(t, attempts[0].Succeeded())
	assert.Equal(t, types.StrategyAlternative, attempts[1].Strategy)
	assert.Equal(t, 2, attempts[1].AttemptNumber)
	assert.True(t, attempts[1].Succeeded())

	// The attempt is recorded against the failed step, not the
	// alternative that ran.
	assert.Equal(t, "s2", attempts[1].StepID)
	require.Len(t, auditLog.Filter(audit.OpSelfHealAlternative, time.Time{}), 1)
}

func TestRecoverSkipsAlternativeWhenNoneNamed(t *testing.T) {
	e, _ := newEngine(t, 3)
	g := graph.New("task-1", []*graph.Step{
		{ID: "s1", Name: "only", Priority: 1, Status: graph.StepInProgress},
	}, nil)
	failed := g.Steps[0]

	attempts := e.Recover("task-1", failed, g, func(step *graph.Step) (bool, error) {
		return false, nil
	})

	// Retry then partial; the absent alternative consumes no attempt.
	require.Len(t, attempts, 2)
	assert.Equal(t, types.StrategyRetry, attempts[0].Strategy)
	assert.Equal(t, 1, attempts[0].AttemptNumber)
	assert.Equal(t, types.StrategyPartial, attempts[1].Strategy)
	assert.Equal(t, 2, attempts[1].AttemptNumber)
	assert.False(t, attempts[1].Succeeded())
}

func TestRecoverPartialPreservesCompletedWork(t *testing.T) {
	e, auditLog := newEngine(t, 3)
	g, failed := cascadeGraph()

	attempts := e.Recover("task-1", failed, g, func(step *graph.Step) (bool, error) {
		return false, nil
	})

	require.Len(t, attempts, 3)
	last := attempts[2]
	assert.Equal(t, types.StrategyPartial, last.Strategy)
	assert.True(t, last.Succeeded())
	assert.Equal(t, graph.StepFailed, failed.Status)

	entries := auditLog.Filter(audit.OpSelfHealPartial, time.Time{})
	require.Len(t, entries, 1)
	assert.Equal(t, audit.OutcomeSuccess, entries[0].Outcome)
}

func TestRecoverPartialFailsWithNothingCompleted(t *testing.T) {
	e, _ := newEngine(t, 3)
	g, failed := cascadeGraph()
	for _, s := range g.Steps {
		s.Status = graph.StepPending
	}

	attempts := e.Recover("task-1", failed, g, func(step *graph.Step) (bool, error) {
		return false, nil
	})

	require.Len(t, attempts, 3)
	assert.False(t, attempts[2].Succeeded())
	for _, a := range attempts {
		assert.False(t, a.Succeeded())
	}
}

func TestRecoverCapturesExecError(t *testing.T) {
	e, auditLog := newEngine(t, 3)
	g, failed := cascadeGraph()

	attempts := e.Recover("task-1", failed, g, func(step *graph.Step) (bool, error) {
		return false, errors.New("disk full")
	})

	require.NotEmpty(t, attempts)
	assert.Equal(t, "disk full", attempts[0].ErrorDetail)

	entries := auditLog.Filter(audit.OpSelfHealRetry, time.Time{})
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Detail, "error=disk full")
}

func TestRecoverCapturesPanic(t *testing.T) {
	e, _ := newEngine(t, 3)
	g, failed := cascadeGraph()

	attempts := e.Recover("task-1", failed, g, func(step *graph.Step) (bool, error) {
		if step.ID == "s2" {
			panic("boom")
		}
		return true, nil
	})

	// The panicking retry is recorded as a failure and the cascade
	// keeps going.
	require.Len(t, attempts, 2)
	assert.Contains(t, attempts[0].ErrorDetail, "boom")
	assert.Equal(t, types.StrategyAlternative, attempts[1].Strategy)
	assert.True(t, attempts[1].Succeeded())
}

func TestRecoverHonorsMaxAttempts(t *testing.T) {
	e, _ := newEngine(t, 1)
	g, failed := cascadeGraph()

	attempts := e.Recover("task-1", failed, g, func(step *graph.Step) (bool, error) {
		return false, nil
	})

	require.Len(t, attempts, 1)
	assert.Equal(t, types.StrategyRetry, attempts[0].Strategy)
}

func TestRecoverTwoAttemptsStopAfterAlternative(t *testing.T) {
	e, _ := newEngine(t, 2)
	g, failed := cascadeGraph()

	attempts := e.Recover("task-1", failed, g, func(step *graph.Step) (bool, error) {
		return false, nil
	})

	require.Len(t, attempts, 2)
	assert.Equal(t, types.StrategyAlternative, attempts[1].Strategy)
}

func TestRecoverNilExecFn(t *testing.T) {
	e, _ := newEngine(t, 3)
	g, failed := cascadeGraph()

	attempts := e.Recover("task-1", failed, g, nil)

	require.Len(t, attempts, 3)
	assert.False(t, attempts[0].Succeeded())
	assert.Empty(t, attempts[0].ErrorDetail)

	// Partial still rescues the completed step.
	assert.True(t, attempts[2].Succeeded())
}
