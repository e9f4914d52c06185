package executor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/vault"
)

// Operation identifies one allowlisted step operation.
type Operation string

// The closed allowlist. Steps that match nothing are refused.
const (
	FileCreate   Operation = "file_create"
	FileCopy     Operation = "file_copy"
	Summarize    Operation = "summarize"
	CreateFolder Operation = "create_folder"
	RenameFile   Operation = "rename_file"
	MoveFile     Operation = "move_file"
	Unknown      Operation = "unknown"
	MultiStep    Operation = "multi_step"
)

// StepResult records the outcome of a single plan step.
type StepResult struct {
	Step      int
	Operation Operation
	Success   bool
	Detail    string
}

// Result is the outcome of executing a full plan. StepsExecuted stops
// at the failing step when the run halts early.
type Result struct {
	Success            bool
	Operation          Operation
	Detail             string
	StepsExecuted      int
	StepsTotal         int
	LastSuccessfulStep int
	StepResults        []StepResult
}

var (
	quotedName = regexp.MustCompile(`["']([^"']+)["']`)
	calledName = regexp.MustCompile(`(?i)(?:named|called)\s+(\S+)`)
)

// Executor runs plan steps sequentially against the vault. Every
// operation is file-system-only and scoped to the vault; a failing
// step halts the run and the remaining steps never execute.
type Executor struct {
	vault    *vault.Vault
	auditLog *audit.Log
	now      func() time.Time
}

// New creates an executor over the given vault.
func New(v *vault.Vault, auditLog *audit.Log) *Executor {
	return &Executor{vault: v, auditLog: auditLog, now: time.Now}
}

// Execute runs all actionable plan steps in order, halting at the
// first failure. The task file is expected under In_Progress.
func (e *Executor) Execute(taskFile string, planSteps []string) Result {
	result := Result{Operation: MultiStep, LastSuccessfulStep: -1}

	steps := ActionableSteps(planSteps)
	result.StepsTotal = len(steps)
	if len(steps) == 0 {
		result.Detail = "No actionable steps found"
		return result
	}

	taskPath := filepath.Join(e.vault.Dir(vault.FolderInProgress), taskFile)
	allSucceeded := true
	for i, step := range steps {
		num := i + 1
		sr := e.runStep(taskPath, step, num)
		result.StepResults = append(result.StepResults, sr)
		result.StepsExecuted = num
		e.logStep(taskFile, num, sr)

		if sr.Success {
			result.LastSuccessfulStep = num
			continue
		}
		allSucceeded = false
		result.Detail = fmt.Sprintf("Halted at step %d/%d: %s", num, len(steps), sr.Detail)
		logger := log.WithComponent("executor")
		logger.Warn().
			Str("task_file", taskFile).
			Int("step", num).
			Msg("halt on failure, remaining steps skipped")
		break
	}

	if allSucceeded {
		result.Success = true
		result.Detail = fmt.Sprintf("All %d steps completed", len(steps))
		if len(steps) == 1 {
			result.Operation = result.StepResults[0].Operation
		}
	}
	return result
}

// ExecuteStep runs a single plan step, used by the recovery cascade
// for targeted re-execution.
func (e *Executor) ExecuteStep(taskFile, step string, num int) StepResult {
	taskPath := filepath.Join(e.vault.Dir(vault.FolderInProgress), taskFile)
	sr := e.runStep(taskPath, step, num)
	e.logStep(taskFile, num, sr)
	return sr
}

func (e *Executor) runStep(taskPath, step string, num int) StepResult {
	op := DetectOperation(step)
	sr := StepResult{Step: num, Operation: op}

	switch op {
	case FileCreate:
		sr.Success, sr.Detail = e.fileCreate(taskPath, step, num)
	case FileCopy:
		sr.Success, sr.Detail = e.fileCopy(taskPath, num)
	case Summarize:
		sr.Success, sr.Detail = e.summarize(taskPath, num)
	case CreateFolder:
		sr.Success, sr.Detail = e.createFolder(step)
	case RenameFile:
		sr.Success, sr.Detail = e.renameFile(taskPath, step)
	case MoveFile:
		sr.Success, sr.Detail = e.moveFile(taskPath)
	default:
		sr.Detail = "Operation not in allowlist: " + string(op)
	}
	return sr
}

// DetectOperation maps free-form step text onto the allowlist.
func DetectOperation(step string) Operation {
	s := strings.ToLower(step)
	switch {
	case containsAny(s, "create file", "create a file", "write file", "new file"):
		return FileCreate
	case containsAny(s, "create folder", "create directory", "make directory", "mkdir", "create a folder", "new folder"):
		return CreateFolder
	case containsAny(s, "rename file", "rename the file", "rename a file"):
		return RenameFile
	case containsAny(s, "move file", "move the file", "move a file"):
		return MoveFile
	case containsAny(s, "copy file", "copy the file", "duplicate"):
		return FileCopy
	case containsAny(s, "summar", "create summary", "generate summary"):
		return Summarize
	}
	return Unknown
}

// ActionableSteps strips headers, blanks, and checkbox prefixes from
// raw plan lines.
func ActionableSteps(planSteps []string) []string {
	var out []string
	for _, s := range planSteps {
		cleaned := strings.TrimSpace(s)
		if cleaned == "" || strings.HasPrefix(cleaned, "#") {
			continue
		}
		cleaned = strings.TrimLeft(cleaned, "- ")
		cleaned = strings.TrimPrefix(cleaned, "[ ] ")
		cleaned = strings.TrimPrefix(cleaned, "[x] ")
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

func (e *Executor) fileCreate(taskPath, step string, num int) (bool, string) {
	stem := strings.TrimSuffix(filepath.Base(taskPath), ".md")
	name := fmt.Sprintf("output-%s-s%d-%s.md", e.now().Format("20060102-150405"), num, stem)
	outPath := filepath.Join(e.vault.Dir(vault.FolderInProgress), name)

	var b strings.Builder
	b.WriteString("# Auto-Generated Output\n\n")
	fmt.Fprintf(&b, "**Source Task**: %s\n", filepath.Base(taskPath))
	fmt.Fprintf(&b, "**Generated**: %s\n", e.now().Format(time.RFC3339))
	fmt.Fprintf(&b, "**Step**: %d\n\n", num)
	fmt.Fprintf(&b, "## Step Executed\n\n%s\n", step)

	if err := os.WriteFile(outPath, []byte(b.String()), 0o644); err != nil {
		return false, "Execution error: " + err.Error()
	}
	return true, "Created: " + name
}

func (e *Executor) fileCopy(taskPath string, num int) (bool, string) {
	if _, err := os.Stat(taskPath); err != nil {
		return false, "Source file not found: " + taskPath
	}
	name := fmt.Sprintf("copy-%s-s%d-%s", e.now().Format("20060102-150405"), num, filepath.Base(taskPath))
	dst := filepath.Join(e.vault.Dir(vault.FolderInProgress), name)
	if err := copyFile(taskPath, dst); err != nil {
		return false, "Execution error: " + err.Error()
	}
	return true, "Copied: " + name
}

func (e *Executor) summarize(taskPath string, num int) (bool, string) {
	data, err := os.ReadFile(taskPath)
	if err != nil {
		return false, "Could not read task: " + taskPath
	}

	var keyLines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "- **") {
			keyLines = append(keyLines, line)
			if len(keyLines) == 20 {
				break
			}
		}
	}

	stem := strings.TrimSuffix(filepath.Base(taskPath), ".md")
	name := fmt.Sprintf("summary-%s-s%d-%s.md", e.now().Format("20060102-150405"), num, stem)
	outPath := filepath.Join(e.vault.Dir(vault.FolderInProgress), name)

	var b strings.Builder
	fmt.Fprintf(&b, "# Summary: %s\n\n", filepath.Base(taskPath))
	fmt.Fprintf(&b, "**Generated**: %s\n", e.now().Format(time.RFC3339))
	fmt.Fprintf(&b, "**Step**: %d\n\n", num)
	b.WriteString("## Key Points\n\n")
	b.WriteString(strings.Join(keyLines, "\n") + "\n")

	if err := os.WriteFile(outPath, []byte(b.String()), 0o644); err != nil {
		return false, "Execution error: " + err.Error()
	}
	return true, "Summarized: " + name
}

func (e *Executor) createFolder(step string) (bool, string) {
	name := extractName(step)
	if name == "" {
		name = "folder-" + e.now().Format("20060102-150405")
	}
	path := filepath.Join(e.vault.Dir(vault.FolderInProgress), name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return false, "Execution error: " + err.Error()
	}
	return true, "Created folder: " + name
}

func (e *Executor) renameFile(taskPath, step string) (bool, string) {
	newName := extractName(step)
	if newName == "" {
		return false, "Could not determine new filename from step"
	}
	if _, err := os.Stat(taskPath); err != nil {
		return false, "Source file not found: " + taskPath
	}
	newPath := filepath.Join(filepath.Dir(taskPath), newName)
	if err := os.Rename(taskPath, newPath); err != nil {
		return false, "Execution error: " + err.Error()
	}
	return true, "Renamed to: " + newName
}

func (e *Executor) moveFile(taskPath string) (bool, string) {
	if _, err := os.Stat(taskPath); err != nil {
		return false, "Source file not found: " + taskPath
	}
	name := filepath.Base(taskPath)
	dst := filepath.Join(e.vault.Dir(vault.FolderDone), name)
	if err := os.Rename(taskPath, dst); err != nil {
		return false, "Execution error: " + err.Error()
	}
	return true, fmt.Sprintf("Moved: %s -> Done/", name)
}

// extractName pulls a file or folder name out of step text, either
// quoted or following "named"/"called".
func extractName(step string) string {
	if m := quotedName.FindStringSubmatch(step); m != nil {
		return m[1]
	}
	if m := calledName.FindStringSubmatch(step); m != nil {
		return m[1]
	}
	return ""
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func (e *Executor) logStep(taskFile string, num int, sr StepResult) {
	outcome := audit.OutcomeFailed
	if sr.Success {
		outcome = audit.OutcomeSuccess
	}
	e.auditLog.Append(audit.OpStepExecuted, taskFile, "In_Progress", "", outcome,
		fmt.Sprintf("step %d: op=%s success=%t detail=%s", num, sr.Operation, sr.Success, sr.Detail))
}
