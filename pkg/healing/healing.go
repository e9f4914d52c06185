package healing

import (
	"fmt"
	"time"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/graph"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
)

// ExecuteFunc re-runs a single step. A false result or an error marks
// the attempt failed; panics are captured the same way.
type ExecuteFunc func(step *graph.Step) (bool, error)

// Engine runs the recovery cascade for a failed step: retry the step,
// try its alternative if the graph names one, then preserve whatever
// completed. An all-failed history tells the caller to escalate to
// rollback.
type Engine struct {
	maxAttempts int
	auditLog    *audit.Log
	now         func() time.Time
}

// New creates an engine bounded to maxAttempts cascade stages.
func New(maxAttempts int, auditLog *audit.Log) *Engine {
	return &Engine{maxAttempts: maxAttempts, auditLog: auditLog, now: time.Now}
}

// Recover walks the cascade for one failed step and returns every
// attempt made, in order. The cascade stops at the first success.
// A stage without its precondition (no alternative named, nothing
// completed yet for partial) consumes no attempt.
func (e *Engine) Recover(taskID string, failedStep *graph.Step, g *graph.Graph, exec ExecuteFunc) []types.RecoveryAttempt {
	var attempts []types.RecoveryAttempt
	n := 0

	if n < e.maxAttempts {
		n++
		a := e.runStep(taskID, failedStep.ID, n, types.StrategyRetry, failedStep, exec)
		attempts = append(attempts, a)
		e.logAttempt(a)
		if a.Succeeded() {
			return attempts
		}
	}

	if n < e.maxAttempts && g != nil {
		if alt := findAlternative(failedStep, g); alt != nil {
			n++
			a := e.runStep(taskID, failedStep.ID, n, types.StrategyAlternative, alt, exec)
			attempts = append(attempts, a)
			e.logAttempt(a)
			if a.Succeeded() {
				return attempts
			}
		}
	}

	if n < e.maxAttempts {
		n++
		a := e.attemptPartial(taskID, failedStep, n, g)
		attempts = append(attempts, a)
		e.logAttempt(a)
	}

	return attempts
}

// runStep executes one step under timing and panic capture.
func (e *Engine) runStep(taskID, stepID string, num int, strategy types.RecoveryStrategy, step *graph.Step, exec ExecuteFunc) types.RecoveryAttempt {
	start := time.Now()
	ok, err := invoke(exec, step)

	a := types.RecoveryAttempt{
		TaskID:        taskID,
		StepID:        stepID,
		AttemptNumber: num,
		Strategy:      strategy,
		Outcome:       "failed",
		DurationMS:    float64(time.Since(start)) / float64(time.Millisecond),
		Timestamp:     e.now(),
	}
	switch {
	case err != nil:
		a.ErrorDetail = err.Error()
	case ok:
		a.Outcome = "success"
	}
	return a
}

func invoke(exec ExecuteFunc, step *graph.Step) (ok bool, err error) {
	if exec == nil {
		return false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("step execution panicked: %v", r)
		}
	}()
	return exec(step)
}

// attemptPartial succeeds when at least one step already completed:
// the failed step is marked failed and the finished work stands.
func (e *Engine) attemptPartial(taskID string, failedStep *graph.Step, num int, g *graph.Graph) types.RecoveryAttempt {
	start := time.Now()
	a := types.RecoveryAttempt{
		TaskID:        taskID,
		StepID:        failedStep.ID,
		AttemptNumber: num,
		Strategy:      types.StrategyPartial,
		Outcome:       "failed",
		Timestamp:     e.now(),
	}
	if g != nil && g.CompletedCount() > 0 {
		failedStep.Status = graph.StepFailed
		a.Outcome = "success"
	}
	a.DurationMS = float64(time.Since(start)) / float64(time.Millisecond)
	return a
}

func findAlternative(failedStep *graph.Step, g *graph.Graph) *graph.Step {
	if failedStep.AlternativeStep == "" {
		return nil
	}
	return g.Step(failedStep.AlternativeStep)
}

func (e *Engine) logAttempt(a types.RecoveryAttempt) {
	var op audit.Op
	switch a.Strategy {
	case types.StrategyAlternative:
		op = audit.OpSelfHealAlternative
	case types.StrategyPartial:
		op = audit.OpSelfHealPartial
	default:
		op = audit.OpSelfHealRetry
	}
	outcome := audit.OutcomeFailed
	if a.Succeeded() {
		outcome = audit.OutcomeSuccess
	}
	detail := fmt.Sprintf("strategy=%s outcome=%s duration_ms=%.1f", a.Strategy, a.Outcome, a.DurationMS)
	if a.ErrorDetail != "" {
		detail += " error=" + a.ErrorDetail
	}
	e.auditLog.Append(op, a.TaskID, "self_heal", "", outcome, detail)

	logger := log.WithComponent("healing")
	logger.Info().
		Str("task_id", a.TaskID).
		Str("step_id", a.StepID).
		Str("strategy", string(a.Strategy)).
		Str("outcome", a.Outcome).
		Msg("recovery attempt")
}
