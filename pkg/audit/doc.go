/*
Package audit maintains the append-only operations log that records
every decision Hutch makes.

The log is a JSON Lines file: one entry per line, appended under a
mutex, never rewritten. It is both the system's forensic trail and its
learning corpus; the dashboard, SLA tracker, and classifier all read
history back out of it.

# Entry Schema

Every entry carries the same seven fields:

	ts       2006-01-02T15:04:05.000 local time with milliseconds
	op       one of the closed operation vocabulary
	file     the task filename (or subsystem label) the entry is about
	src      originating folder or component
	dst      destination folder, the literal string "null" when absent
	outcome  success | failed | flagged
	detail   free-form key=value context

# Operation Vocabulary

The vocabulary is closed: task_created, task_moved, plan_generated,
task_classified, task_executed, step_executed, credential_flagged,
error, sla_breach, sla_prediction, rollback_triggered,
rollback_restored, gate_blocked, override_applied, notification_sent,
notification_failed, heartbeat_fail, risk_scored, self_heal_retry,
self_heal_alternative, self_heal_partial, learning_update,
priority_adjusted, concurrency_queued. Appending an unknown op logs a
warning but still records the entry; readers filtering by op simply
never see it.

# Usage

	auditLog := audit.NewLog(cfg.OperationsLogPath)
	auditLog.Append(audit.OpTaskMoved, name,
		vault.FolderNeedsAction, vault.FolderInProgress,
		audit.OutcomeSuccess, "")

	recent := auditLog.Tail(10)                       // newest first
	moves := auditLog.Filter(audit.OpTaskMoved, since) // oldest first
	failures := auditLog.CountErrors(24 * time.Hour)

# Failure Semantics

Append never returns an error. A sink that cannot be written is logged
through zerolog and the entry is dropped; the orchestrator must not
stall because its notebook ran out of ink. Readers skip malformed
lines, so one corrupt entry never hides the rest of the log. The one
asymmetry is CountErrors: an entry with outcome=failed counts toward
the error rate even when its timestamp no longer parses.

SetHook registers a single observer invoked per append; the metrics
bridge uses it to count entries by op. The hook runs under the append
mutex and must not append.
*/
package audit
