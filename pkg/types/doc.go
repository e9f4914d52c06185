/*
Package types defines the core data structures used throughout Hutch.

This package contains the fundamental types of the orchestrator's domain
model: tasks and their lifecycle states, risk scores, learning
aggregates, SLA predictions, recovery attempts, and concurrency slots.
All other packages build on these types for classification, planning,
scheduling, and recording.

# Core Types

Task Lifecycle:
  - Task: Frontmatter view of a vault task file
  - TaskStatus: pending, in_progress, done, failed, failed_rollback, blocked
  - TaskType: document, email, data, code, report, general
  - Priority: low, normal, high, critical (ordering via Value)
  - Complexity: simple, complex, manual_review (classifier verdict)

Intelligence:
  - RiskScore: Weighted composite of sla/complexity/impact/failure
  - LearningRecord: One observed outcome, replayable
  - LearningMetrics: Per-type running aggregates (Welford mean/variance)
  - SLAPrediction: Breach probability with recommendation bucket
  - RecoveryAttempt: One stage of the self-healing cascade

Scheduling:
  - Slot: Admission to the bounded executor pool with a deadline

Types that persist (LearningRecord, LearningMetrics) carry JSON tags
matching the on-disk schema; Task carries YAML tags matching the vault
frontmatter. Runtime-only types (RiskScore, SLAPrediction, Slot) have
no serialized form.
*/
package types
