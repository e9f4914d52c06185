/*
Package processor drives tasks through the full orchestration
pipeline and runs the periodic loop around it.

# Pipeline

ProcessTask takes one pending task end to end:

	plan       decompose content into an execution graph (skipped when
	           a plan already exists), persist it under Plans/
	classify   run the six-gate classifier, write complexity and gate
	           results into the frontmatter
	admit      manual_review and disabled tiers stop here; admissible
	           tasks acquire a concurrency slot or join the risk queue
	snapshot   complex tasks are snapshotted before execution; a failed
	           snapshot blocks the task instead of running uncovered
	execute    a worker goroutine runs the graph's steps in topological
	           order through the allow-listed executor, with predictive
	           SLA checks mid-flight
	heal       a failed step enters the recovery cascade; a successful
	           recovery resumes the remaining steps
	rollback   cascade exhaustion restores the snapshot and marks the
	           task failed_rollback
	record     terminal tasks feed the learning store, the retrospective
	           SLA check, the notifier, and a task_executed audit entry

ExecutionSequence orders admissible tasks by composite risk when risk
scoring is enabled; otherwise declared priority first, oldest first
within a tier. DrainQueue promotes queued tasks into freed slots;
FailTimedOut handles tasks whose slots expired.

# Loop

Loop wraps the pipeline in the periodic cycle. Each tick, in order:
credential scan, snapshot retention purge, learning-store maintenance
(daily), folder reconciliation, slot timeout sweep, queue drain,
processing of pending tasks, heartbeat, dashboard refresh. The first
cycle runs immediately at Start rather than one interval later; Stop
is idempotent, cancels the workers' context, and waits for in-flight
executions before the final dashboard render.

A tick never aborts on component failure: errors become audit entries
and heartbeat results, and the next tick tries again.
*/
package processor
