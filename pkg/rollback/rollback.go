// Package rollback snapshots task state before risky execution and
// restores it when execution fails beyond recovery.
package rollback

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/cuemby/hutch/pkg/vault"
)

const stampFormat = "20060102-150405"

// Manifest records what a snapshot captured. It is written as
// manifest.json inside each snapshot directory.
type Manifest struct {
	Timestamp    time.Time `json:"timestamp"`
	TaskRef      string    `json:"task_ref"`
	TaskStem     string    `json:"task_stem"`
	SnapshotPath string    `json:"snapshot_path"`
	FileList     []string  `json:"file_list"`
}

// Manager creates, restores and expires snapshots under the vault's
// Rollback_Archive folder. Each snapshot holds the task file, any
// In_Progress outputs tied to it, and a manifest.
type Manager struct {
	vault         *vault.Vault
	archive       string
	retentionDays int
	auditLog      *audit.Log
	now           func() time.Time
}

// New creates a manager and ensures the archive folder exists.
func New(v *vault.Vault, retentionDays int, auditLog *audit.Log) *Manager {
	m := &Manager{
		vault:         v,
		archive:       v.Dir(vault.FolderRollbackArchive),
		retentionDays: retentionDays,
		auditLog:      auditLog,
		now:           time.Now,
	}
	if err := os.MkdirAll(m.archive, 0755); err != nil {
		logger := log.WithComponent("rollback")
		logger.Warn().Err(err).Msg("could not create archive folder")
	}
	return m
}

// CreateSnapshot copies a task file and its related In_Progress
// outputs into a timestamped archive directory and returns its path.
// Outputs are matched by the task's filename stem.
func (m *Manager) CreateSnapshot(taskPath string) (string, error) {
	if _, err := os.Stat(taskPath); err != nil {
		return "", fmt.Errorf("cannot snapshot, task not found: %s", taskPath)
	}

	name := filepath.Base(taskPath)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	snapshotName := m.now().Format(stampFormat) + "-" + stem
	snapshotDir := filepath.Join(m.archive, snapshotName)

	dir, err := m.buildSnapshot(taskPath, stem, snapshotName, snapshotDir)
	if err != nil {
		m.auditLog.Append(audit.OpRollbackTriggered, name, vault.FolderInProgress, snapshotDir,
			audit.OutcomeFailed, "error:"+err.Error())
		return "", err
	}

	m.auditLog.Append(audit.OpRollbackTriggered, name, vault.FolderInProgress, snapshotDir,
		audit.OutcomeSuccess, "snapshot:"+snapshotName)
	logger := log.WithComponent("rollback")
	logger.Info().
		Str("task", name).
		Str("snapshot", snapshotName).
		Msg("snapshot created")
	return dir, nil
}

func (m *Manager) buildSnapshot(taskPath, stem, snapshotName, snapshotDir string) (string, error) {
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	if err := copyFile(taskPath, filepath.Join(snapshotDir, "task.md")); err != nil {
		return "", err
	}
	fileList := []string{"task.md"}

	outputs, err := m.relatedOutputs(taskPath, stem)
	if err != nil {
		return "", err
	}
	if len(outputs) > 0 {
		outputsDir := filepath.Join(snapshotDir, "outputs")
		if err := os.MkdirAll(outputsDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create outputs dir: %w", err)
		}
		for _, src := range outputs {
			base := filepath.Base(src)
			if err := copyFile(src, filepath.Join(outputsDir, base)); err != nil {
				return "", err
			}
			fileList = append(fileList, "outputs/"+base)
		}
	}

	manifest := Manifest{
		Timestamp:    m.now(),
		TaskRef:      filepath.Base(taskPath),
		TaskStem:     stem,
		SnapshotPath: snapshotDir,
		FileList:     fileList,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(snapshotDir, "manifest.json"), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return snapshotDir, nil
}

// relatedOutputs finds In_Progress files whose names contain the task
// stem, excluding the task file itself.
func (m *Manager) relatedOutputs(taskPath, stem string) ([]string, error) {
	pattern := filepath.Join(m.vault.Dir(vault.FolderInProgress), "*"+stem+"*")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob outputs: %w", err)
	}
	taskAbs := filepath.Clean(taskPath)
	var outputs []string
	for _, p := range matches {
		if filepath.Clean(p) == taskAbs {
			continue
		}
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		outputs = append(outputs, p)
	}
	return outputs, nil
}

// Restore copies a snapshot's task file and outputs back into the
// vault and marks the task failed_rollback.
func (m *Manager) Restore(snapshotDir, taskPath string) error {
	if _, err := os.Stat(snapshotDir); err != nil {
		return fmt.Errorf("snapshot not found: %s", snapshotDir)
	}
	manifestPath := filepath.Join(snapshotDir, "manifest.json")
	if _, err := os.Stat(manifestPath); err != nil {
		return fmt.Errorf("snapshot has no manifest: %s", snapshotDir)
	}

	taskRef := "unknown"
	manifest, err := readManifest(manifestPath)
	if err == nil && manifest.TaskRef != "" {
		taskRef = manifest.TaskRef
	}
	if err == nil {
		err = m.restoreFiles(snapshotDir, taskPath, manifest)
	}
	if err != nil {
		m.auditLog.Append(audit.OpRollbackRestored, taskRef, snapshotDir, vault.FolderInProgress,
			audit.OutcomeFailed, "error:"+err.Error())
		return err
	}

	m.auditLog.Append(audit.OpRollbackRestored, taskRef, snapshotDir, vault.FolderInProgress,
		audit.OutcomeSuccess, fmt.Sprintf("restored_files:%d", len(manifest.FileList)))
	logger := log.WithComponent("rollback")
	logger.Info().
		Str("task", taskRef).
		Str("snapshot", filepath.Base(snapshotDir)).
		Msg("snapshot restored")
	return nil
}

func (m *Manager) restoreFiles(snapshotDir, taskPath string, manifest *Manifest) error {
	if err := copyFile(filepath.Join(snapshotDir, "task.md"), taskPath); err != nil {
		return err
	}

	outputsDir := filepath.Join(snapshotDir, "outputs")
	if entries, err := os.ReadDir(outputsDir); err == nil {
		inProgress := m.vault.Dir(vault.FolderInProgress)
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			src := filepath.Join(outputsDir, e.Name())
			if err := copyFile(src, filepath.Join(inProgress, e.Name())); err != nil {
				return err
			}
		}
	}

	return m.markFailedRollback(taskPath)
}

// markFailedRollback rewrites the restored task's frontmatter so the
// mover routes it out of the active flow.
func (m *Manager) markFailedRollback(taskPath string) error {
	data, err := os.ReadFile(taskPath)
	if err != nil {
		return fmt.Errorf("failed to read restored task: %w", err)
	}
	task, body, err := vault.ParseFrontmatter(data)
	if err != nil {
		return fmt.Errorf("failed to parse restored task: %w", err)
	}

	task.Status = types.StatusFailedRollback
	task.Version++
	task.Updated = m.now()

	out, err := vault.RenderFrontmatter(task, body)
	if err != nil {
		return fmt.Errorf("failed to render restored task: %w", err)
	}
	if err := os.WriteFile(taskPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write restored task: %w", err)
	}
	return nil
}

// PurgeExpired removes snapshots older than the retention window and
// returns how many were deleted. The manifest timestamp decides age;
// directories without a readable manifest fall back to the timestamp
// prefix in their name.
func (m *Manager) PurgeExpired() int {
	cutoff := m.now().AddDate(0, 0, -m.retentionDays)
	entries, err := os.ReadDir(m.archive)
	if err != nil {
		logger := log.WithComponent("rollback")
		logger.Warn().Err(err).Msg("could not read archive")
		return 0
	}

	purged := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(m.archive, e.Name())
		ts, ok := snapshotTime(dir, e.Name())
		if !ok {
			logger := log.WithComponent("rollback")
			logger.Warn().Str("snapshot", e.Name()).Msg("undated snapshot skipped")
			continue
		}
		if !ts.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			logger := log.WithComponent("rollback")
			logger.Warn().Err(err).Str("snapshot", e.Name()).Msg("purge failed")
			continue
		}
		purged++
	}

	if purged > 0 {
		logger := log.WithComponent("rollback")
		logger.Info().Int("purged", purged).Msg("expired snapshots removed")
	}
	return purged
}

func snapshotTime(dir, name string) (time.Time, bool) {
	if manifest, err := readManifest(filepath.Join(dir, "manifest.json")); err == nil && !manifest.Timestamp.IsZero() {
		return manifest.Timestamp, true
	}
	if len(name) >= len(stampFormat) {
		if ts, err := time.ParseInLocation(stampFormat, name[:len(stampFormat)], time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Sync()
}
