// Package watcher ingests external files into the vault as tasks,
// either live via filesystem events or in bulk via Import.
package watcher

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/events"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/cuemby/hutch/pkg/vault"
)

// SourceType identifies tasks ingested from the watched directory.
const SourceType = "file_watcher"

// fileTypes maps file extensions to task type categories.
var fileTypes = map[string]types.TaskType{
	// Documents
	".txt": types.TypeDocument, ".md": types.TypeDocument,
	".doc": types.TypeDocument, ".docx": types.TypeDocument,
	".pdf": types.TypeDocument, ".rtf": types.TypeDocument,
	".odt": types.TypeDocument,
	// Images
	".png": types.TypeImage, ".jpg": types.TypeImage,
	".jpeg": types.TypeImage, ".gif": types.TypeImage,
	".bmp": types.TypeImage, ".svg": types.TypeImage,
	".webp": types.TypeImage,
	// Data
	".csv": types.TypeData, ".json": types.TypeData,
	".xml": types.TypeData, ".xlsx": types.TypeData,
	".xls": types.TypeData, ".tsv": types.TypeData,
	".yaml": types.TypeData, ".yml": types.TypeData,
	// Email
	".eml": types.TypeEmail, ".msg": types.TypeEmail,
}

// textExtensions are embedded into the task body; everything else gets
// a metadata stanza only.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".json": true, ".log": true,
}

// contentPreviewBytes caps how much of a source file lands in the task body.
const contentPreviewBytes = 2048

// DetectFileType categorizes a file by extension.
func DetectFileType(path string) types.TaskType {
	if t, ok := fileTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return types.TypeUnknown
}

// Watcher monitors a directory for new files and turns each one into a
// task in Needs_Action. Duplicate files (same path and leading content)
// are skipped via the vault's hash registry.
type Watcher struct {
	vault    *vault.Vault
	watchDir string
	registry *vault.HashRegistry
	auditLog *audit.Log
	broker   *events.Broker

	fs     *fsnotify.Watcher
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool

	now func() time.Time
}

// New creates a watcher over watchDir. The broker may be nil; events
// are then only recorded in the audit log.
func New(v *vault.Vault, watchDir string, auditLog *audit.Log, broker *events.Broker) (*Watcher, error) {
	registry, err := vault.NewHashRegistry(v.Root())
	if err != nil {
		return nil, err
	}
	return &Watcher{
		vault:    v,
		watchDir: watchDir,
		registry: registry,
		auditLog: auditLog,
		broker:   broker,
		now:      time.Now,
	}, nil
}

// Start begins watching the directory. Non-blocking; use Stop to shut
// the watcher down.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	info, err := os.Stat(w.watchDir)
	if err != nil || !info.IsDir() {
		w.mu.Unlock()
		return fmt.Errorf("watch directory not found: %s", w.watchDir)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fs.Add(w.watchDir); err != nil {
		fs.Close()
		w.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", w.watchDir, err)
	}

	w.fs = fs
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	w.mu.Unlock()

	log.WithComponent("watcher").Info().
		Str("dir", w.watchDir).
		Msg("Watching for new files")

	go w.run()
	return nil
}

// Stop stops the watcher and waits for the event loop to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.fs.Close(); err != nil {
		log.WithComponent("watcher").Warn().Err(err).Msg("Error closing file watcher")
	}
	log.WithComponent("watcher").Info().Msg("File watcher stopped")
}

// Running reports whether the event loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				w.handleCreate(event.Name)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.WithComponent("watcher").Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) handleCreate(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	log.WithComponent("watcher").Info().Str("file", path).Msg("New file detected")

	if _, err := w.CreateTaskFromFile(path); err != nil {
		log.WithComponent("watcher").Error().Err(err).Str("file", path).Msg("Failed to create task")
	}
}

// CreateTaskFromFile turns a source file into a task in Needs_Action.
// Returns the created task filename, or "" when the file was skipped
// as a duplicate.
func (w *Watcher) CreateTaskFromFile(path string) (string, error) {
	fingerprint, err := vault.Fingerprint(path)
	if err != nil {
		return "", err
	}
	if w.registry.Seen(fingerprint) {
		log.WithComponent("watcher").Info().Str("file", path).Msg("Duplicate file, skipping")
		return "", nil
	}

	title := filepath.Base(path)
	fileType := DetectFileType(path)
	now := w.now()

	task := &types.Task{
		ID:          uuid.NewString(),
		Source:      SourceType,
		Type:        fileType,
		Created:     now,
		OriginalRef: path,
		Status:      types.StatusPending,
		Version:     1,
		Priority:    types.PriorityNormal,
	}
	body := taskBody(title, w.describeFile(path), SourceType, path, fileType, now)

	filename := vault.TaskFilename(title, now)
	if err := w.vault.WriteTask(vault.FolderNeedsAction, filename, task, body); err != nil {
		return "", err
	}

	if err := w.registry.Add(fingerprint); err != nil {
		log.WithComponent("watcher").Warn().Err(err).Msg("Failed to record fingerprint")
	}
	if w.auditLog != nil {
		w.auditLog.Append(audit.OpTaskCreated, filename, SourceType,
			vault.FolderNeedsAction, audit.OutcomeSuccess,
			fmt.Sprintf("type:%s", fileType))
	}
	if w.broker != nil {
		w.broker.Publish(&events.Event{
			Type:    events.EventTaskCreated,
			TaskID:  task.ID,
			Message: fmt.Sprintf("Task created: %s", filename),
		})
	}

	log.WithComponent("watcher").Info().
		Str("task", filename).
		Str("type", string(fileType)).
		Msg("Created task")
	return filename, nil
}

// Import walks dir once and creates tasks for every existing non-hidden
// file. Returns the number of tasks created; duplicates count as
// skipped, not errors.
func (w *Watcher) Import(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read import directory: %w", err)
	}

	created := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name, err := w.CreateTaskFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.WithComponent("watcher").Warn().
				Err(err).
				Str("file", entry.Name()).
				Msg("Import skipped file")
			continue
		}
		if name != "" {
			created++
		}
	}
	return created, nil
}

// describeFile builds the task content for a source file. Text files
// contribute their leading content; binary files get a metadata stanza.
// Read failures degrade to the bare detection line.
func (w *Watcher) describeFile(path string) string {
	name := filepath.Base(path)

	if textExtensions[strings.ToLower(filepath.Ext(path))] {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Sprintf("New file detected: **%s**", name)
		}
		defer f.Close()

		preview, err := io.ReadAll(io.LimitReader(f, contentPreviewBytes))
		if err != nil {
			return fmt.Sprintf("New file detected: **%s**", name)
		}
		return fmt.Sprintf("New file detected: **%s**\n\n```\n%s\n```", name, string(preview))
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("New file detected: **%s**", name)
	}
	ext := filepath.Ext(path)
	if ext == "" {
		ext = "Unknown"
	}
	return fmt.Sprintf("New file detected: **%s**\n\n- **Size**: %s bytes\n- **Type**: %s\n- **Modified**: %s",
		name, groupThousands(info.Size()), ext, info.ModTime().Format("2006-01-02T15:04:05"))
}

func taskBody(title, content, source, originalRef string, fileType types.TaskType, now time.Time) string {
	return fmt.Sprintf(`# Task: %s

## Content

%s

## Metadata

- **Source**: %s
- **Type**: %s
- **Detected**: %s
- **Original Reference**: %s
`, title, content, source, fileType, now.Format("2006-01-02 15:04:05"), originalRef)
}

// groupThousands renders 1234567 as "1,234,567".
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
