/*
Package watcher turns files dropped into the inbox directory into
tasks in the vault.

The watcher is the ingestion edge: an fsnotify listener on the watch
directory reacting to file creation, plus an Import walk for files
that were already there before the orchestrator started.

# Task Creation

For each new file, CreateTaskFromFile:

 1. Fingerprints the file and consults the vault's hash registry;
    a duplicate is skipped silently.
 2. Detects the task type from the extension map (documents, images,
    data files, email exports; anything else is unknown).
 3. Builds the task body: text extensions (.txt, .md, .csv, .json,
    .log) get their first 2 KiB fenced as a preview, binaries get a
    size/type/modified metadata stanza instead.
 4. Writes the note to Needs_Action with fresh frontmatter (uuid id,
    source file_watcher, status pending, version 1, normal priority)
    and registers the fingerprint.
 5. Appends a task_created audit entry and publishes a task_created
    event for the dashboard's activity feed.

# Lifecycle

Start spawns the event loop; Stop closes it down and waits; Running
reports liveness for the dashboard's status line. Import(dir) walks a
directory non-recursively, skipping dotfiles and subdirectories, and
returns how many tasks it created.
*/
package watcher
