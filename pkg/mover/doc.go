/*
Package mover reconciles task file locations with their frontmatter
status.

Statuses change in two ways: the orchestrator writes them, and
operators edit them by hand in their note app. Either way the file may
end up in the wrong folder, so every loop cycle CheckAndMove sweeps
the vault and applies the rules:

	Needs_Action + in_progress  → In_Progress
	Needs_Action + done         → Done
	In_Progress  + done         → Done

Tasks marked failed, failed_rollback, or blocked stay in In_Progress
for review; pending tasks stay put. Each move appends a task_moved
audit entry and the vault stamps the note's Movement Log. A task whose
frontmatter cannot be parsed is recorded as an error entry and
skipped, never silently dropped.
*/
package mover
