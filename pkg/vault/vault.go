package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
)

// Vault folder names. The folder a task file sits in is the coarse
// state machine; frontmatter status is the fine-grained one.
const (
	FolderNeedsAction     = "Needs_Action"
	FolderInProgress      = "In_Progress"
	FolderDone            = "Done"
	FolderPlans           = "Plans"
	FolderRollbackArchive = "Rollback_Archive"
	FolderLearningData    = "Learning_Data"
)

// Root files created on init
const (
	DashboardFile = "Dashboard.md"
	HandbookFile  = "Company_Handbook.md"
	hashFile      = ".task_hashes"
)

// requiredFolders are checked by Validate. Learning_Data is created on
// init but its absence is not fatal: the learning store recreates it.
var requiredFolders = []string{
	FolderNeedsAction,
	FolderInProgress,
	FolderDone,
	FolderPlans,
	FolderRollbackArchive,
}

var requiredFiles = []string{DashboardFile, HandbookFile}

// Vault is the markdown task store rooted at a single directory.
type Vault struct {
	root string
}

// New returns a vault rooted at root. Call Init before first use.
func New(root string) *Vault {
	return &Vault{root: root}
}

// Root returns the vault root directory.
func (v *Vault) Root() string {
	return v.root
}

// Dir returns the absolute path of a vault folder.
func (v *Vault) Dir(folder string) string {
	return filepath.Join(v.root, folder)
}

// Init creates the folder tree and seed files. Existing content is
// left untouched, so Init is safe to run repeatedly.
func (v *Vault) Init() error {
	folders := append(append([]string{}, requiredFolders...), FolderLearningData)
	for _, folder := range folders {
		if err := os.MkdirAll(v.Dir(folder), 0755); err != nil {
			return fmt.Errorf("failed to create folder %s: %w", folder, err)
		}
	}

	seeds := map[string]string{
		DashboardFile: dashboardSeed,
		HandbookFile:  handbookSeed,
		hashFile:      "",
	}
	for name, content := range seeds {
		path := filepath.Join(v.root, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
	}

	logger := log.WithComponent("vault")
	logger.Info().Str("root", v.root).Msg("vault initialized")
	return nil
}

// Validate reports missing required folders and files, empty when the
// structure is intact.
func (v *Vault) Validate() []string {
	var missing []string
	for _, folder := range requiredFolders {
		if info, err := os.Stat(v.Dir(folder)); err != nil || !info.IsDir() {
			missing = append(missing, folder)
		}
	}
	for _, name := range requiredFiles {
		if _, err := os.Stat(filepath.Join(v.root, name)); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// List returns the markdown files in a folder, sorted by name. The
// timestamped naming scheme makes that chronological order.
func (v *Vault) List(folder string) ([]string, error) {
	entries, err := os.ReadDir(v.Dir(folder))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", folder, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ReadTask loads the frontmatter and body of a task file.
func (v *Vault) ReadTask(folder, name string) (*types.Task, string, error) {
	data, err := os.ReadFile(filepath.Join(v.Dir(folder), name))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read task %s: %w", name, err)
	}
	task, body, err := ParseFrontmatter(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse task %s: %w", name, err)
	}
	return task, body, nil
}

// WriteTask renders frontmatter plus body to a task file.
func (v *Vault) WriteTask(folder, name string, task *types.Task, body string) error {
	data, err := RenderFrontmatter(task, body)
	if err != nil {
		return fmt.Errorf("failed to render task %s: %w", name, err)
	}
	path := filepath.Join(v.Dir(folder), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write task %s: %w", name, err)
	}
	return nil
}

// Locate finds which workflow folder holds a task file. In_Progress is
// checked before Needs_Action, then Done.
func (v *Vault) Locate(name string) (string, bool) {
	for _, folder := range []string{FolderInProgress, FolderNeedsAction, FolderDone} {
		if _, err := os.Stat(filepath.Join(v.Dir(folder), name)); err == nil {
			return folder, true
		}
	}
	return "", false
}

// Move relocates a task file between folders and appends a movement
// log entry to its body.
func (v *Vault) Move(name, srcFolder, dstFolder string) error {
	task, body, err := v.ReadTask(srcFolder, name)
	if err != nil {
		return err
	}

	body = appendMovementLog(body, srcFolder, dstFolder, time.Now())

	if err := os.MkdirAll(v.Dir(dstFolder), 0755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", dstFolder, err)
	}
	if err := v.WriteTask(dstFolder, name, task, body); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(v.Dir(srcFolder), name)); err != nil {
		return fmt.Errorf("failed to remove source copy of %s: %w", name, err)
	}
	return nil
}

// MoveToInProgress moves a pending task from Needs_Action.
func (v *Vault) MoveToInProgress(name string) error {
	return v.Move(name, FolderNeedsAction, FolderInProgress)
}

// MoveToDone moves a task to Done from wherever it currently sits.
func (v *Vault) MoveToDone(name string) error {
	for _, folder := range []string{FolderInProgress, FolderNeedsAction} {
		if _, err := os.Stat(filepath.Join(v.Dir(folder), name)); err == nil {
			return v.Move(name, folder, FolderDone)
		}
	}
	return fmt.Errorf("task not found: %s", name)
}

// UpdateStatus rewrites a task's status in place, bumping the version
// and stamping updated (and completed_at for terminal statuses). It
// returns the folder the task was found in and the updated task.
func (v *Vault) UpdateStatus(name string, status types.TaskStatus) (string, *types.Task, error) {
	folder, ok := v.Locate(name)
	if !ok {
		return "", nil, fmt.Errorf("task not found: %s", name)
	}

	task, body, err := v.ReadTask(folder, name)
	if err != nil {
		return "", nil, err
	}

	task.Status = status
	task.Version++
	task.Updated = time.Now()
	if status.Terminal() {
		task.CompletedAt = task.Updated
	}

	if err := v.WriteTask(folder, name, task, body); err != nil {
		return "", nil, err
	}
	return folder, task, nil
}

// appendMovementLog records a folder move in the task body. Entries
// are prepended under the section header, newest first.
func appendMovementLog(body, src, dst string, ts time.Time) string {
	const header = "## Movement Log"
	entry := fmt.Sprintf("- %s: Moved from `%s` to `%s`", ts.Format(time.RFC3339), src, dst)

	idx := strings.Index(body, header)
	if idx < 0 {
		if !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		return body + "\n" + header + "\n\n" + entry + "\n"
	}

	insertAt := idx + len(header)
	// Skip the blank line after the header
	rest := body[insertAt:]
	trimmed := strings.TrimLeft(rest, "\n")
	skipped := len(rest) - len(trimmed)
	insertAt += skipped
	return body[:insertAt] + entry + "\n" + body[insertAt:]
}

const dashboardSeed = `# Dashboard

_Refreshed automatically each cycle. Manual edits are overwritten._

## Recent Activity

_No activity yet._

## Statistics

## Metrics

## Intelligence

## Active Alerts

## Recent Errors

## Watcher Status
`

const handbookSeed = `# Company Handbook

Operating notes for this vault. Tasks arrive in Needs_Action, move to
In_Progress while being worked, and land in Done. Plans live beside
their tasks in Plans; snapshots for risky work are kept under
Rollback_Archive.

Tasks that end in failed, failed_rollback, or blocked remain in
In_Progress for manual review.
`
