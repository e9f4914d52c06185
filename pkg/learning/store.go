package learning

import (
	"github.com/cuemby/hutch/pkg/types"
)

// Store accumulates task outcomes per type and serves the aggregates
// that planning, risk scoring, and SLA prediction consume.
//
// Record never fails loudly: intelligence signals are best-effort and
// a storage problem must not break the task that produced the outcome.
// Query returns nil when a type has no usable history, which callers
// treat as a cold start.
type Store interface {
	// Record appends one outcome and folds it into the aggregates.
	// Returns false when the outcome could not be stored.
	Record(taskType types.TaskType, durationMS float64, outcome string,
		retryCount int, retrySucceeded bool, slaBreached bool) bool

	// Query returns the aggregates for a task type, nil when absent
	// or unreadable.
	Query(taskType types.TaskType) *types.LearningMetrics

	// Maintenance drops records older than the retention window and
	// recomputes aggregates from what remains. Returns the number of
	// purged records.
	Maintenance() (int, error)

	// Close releases the underlying database.
	Close() error
}

// Outcome strings recorded with each observation
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
