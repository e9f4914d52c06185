/*
Package learning persists per-task-type outcome history and keeps
running aggregates over it.

The store is the only component that accumulates state across tasks.
Everything else asks it two questions: what is the duration
distribution for this task type (planner estimates, SLA prediction),
and how often does this type fail (risk scoring).

# Storage Layout

BoltStore keeps a single bbolt file, learning.db, under the vault's
Learning_Data folder:

	records/<task_type>/   one sub-bucket per type, NextSequence keys,
	                       JSON LearningRecord values
	aggregates/<task_type> JSON LearningMetrics per type

Raw records are retained so Maintenance can recompute aggregates
honestly; the aggregates exist so readers never scan.

# Aggregates

Record folds each sample into the type's metrics with Welford's
recurrence: counts, success/failure/retry/breach tallies, running mean
and running population variance (a single sample has variance zero).
Derived rates (failure rate, retry success rate, SLA compliance,
stdev) are methods on types.LearningMetrics, computed at read time.

Record validates its inputs (a task type and a non-negative duration),
logs and swallows storage failures, and appends one learning_update
audit entry per accepted sample. Query returns nil for an unknown or
corrupt type; callers treat nil as a cold start, not an error.

# Retention

Maintenance deletes records older than the configured window, then
recomputes every touched type's aggregates from the survivors in two
passes (exact mean, then exact variance), dropping aggregates whose
records all aged out. A zero-day window purges everything. The loop
runs one sweep at startup and daily after that.
*/
package learning
