/*
Package rollback snapshots tasks before risky execution and restores
them when recovery fails.

# Snapshots

CreateSnapshot copies the task note and every In_Progress output
matching the task's stem into a timestamped directory:

	Rollback_Archive/{YYYYMMDD-HHMMSS}-{stem}/
	  task.md
	  outputs/...
	  manifest.json   timestamp, task_ref, task_stem, snapshot_path,
	                  file_list

Each snapshot appends a rollback_triggered audit entry; a snapshot
that cannot be taken is itself a failed entry, and the processor
treats it as a blocker rather than executing without a safety net.

# Restore

Restore copies the snapshot's files back over the vault, marks the
task failed_rollback (version bump), and appends rollback_restored
with the restored file count. A snapshot without a readable manifest
is a failed restore, audited as such.

# Retention

PurgeExpired deletes snapshots older than the retention window, dating
each by its manifest timestamp and falling back to the directory-name
prefix when the manifest is gone. Directories with neither are left
alone; an undatable snapshot is somebody's manual backup until proven
otherwise.
*/
package rollback
