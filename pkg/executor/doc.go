/*
Package executor carries out plan steps through a closed set of
file-system operations.

There is no shell, no network, and no interpreter here. A step's text
is matched against keyword tables to detect exactly one allow-listed
operation, and anything unrecognized fails the step rather than guess:

	file_create    write a note capturing the step outcome
	file_copy      copy the task file's content to a new note
	summarize      extract key lines from the task into a summary note
	create_folder  make a named directory under the vault
	rename_file    rename the task's output within In_Progress
	move_file      move the task file to Done

Output artifacts land in In_Progress with deterministic names
(`output-<ts>-s<n>-<stem>.md`, `copy-...`, `summary-...`) so rollback
can find everything a task produced by its stem. Target names are
extracted from quoted strings or a `named <word>` / `called <word>`
phrase in the step text.

Execute runs a plan's actionable steps sequentially and halts at the
first failure, returning per-step results plus the overall operation
label (the single op, or multi_step). Each step appends a
step_executed audit entry with its ordinal, operation, and outcome.
ExecuteStep exposes the single-step path for the healing engine, which
re-runs individual steps during recovery.
*/
package executor
