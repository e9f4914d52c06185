/*
Package vault manages the markdown folder tree that stores every task.

The vault is plain files on purpose: each task is a markdown note with
YAML frontmatter, readable and editable in any text editor or note
app. Hutch is a collaborator in the vault, not its owner; operators
move files and flip statuses by hand, and the orchestrator reconciles.

# Layout

	<vault_path>/
	  Needs_Action/       ingested tasks waiting for processing
	  In_Progress/        tasks being executed, plus their outputs
	  Done/               completed tasks
	  Plans/              <task>.graph.json + <task>-plan.md per task
	  Rollback_Archive/   pre-execution snapshots
	  Learning_Data/      learning.db (bbolt)
	  Dashboard.md        rendered status board
	  Company_Handbook.md operating rules seed
	  .task_hashes        md5 dedup registry, one hash per line

Init creates all of it idempotently; Validate reports what is missing.

# Task Files

Frontmatter is YAML between --- fences (id, source, type, created,
status, version, priority, then the enrichments: complexity,
classified_at, gate_results, plan_ref, rollback_ref, updated,
completed_at). ParseFrontmatter and RenderFrontmatter round-trip
task+body exactly. Filenames are `{YYYYMMDD}-{HHMMSS}-{slug}.md` with
a lowercase alphanumeric-and-hyphen slug capped at 30 bytes, which
makes a plain name sort chronological.

Move relocates a note between folders and appends a timestamped line
under its `## Movement Log` heading, newest first, so the file itself
tells its history. UpdateStatus rewrites frontmatter in place (version
bump, updated stamp, completed_at on terminal statuses), searching
In_Progress before Needs_Action. MoveToDone takes the same fallback
order.

# Dedup Registry

HashRegistry keeps one md5 per ingested file, computed over the source
path plus the first KiB of content, persisted by append to
.task_hashes. The watcher consults it so re-dropping the same file
into the inbox does not mint a second task.
*/
package vault
