package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cuemby/hutch/pkg/log"
)

// TimeLayout is the timestamp format of every audit entry. Entries are
// written and parsed with this exact layout; readers never rewrite
// separators to guess at a format.
const TimeLayout = "2006-01-02T15:04:05.000"

// Op identifies an auditable operation. The vocabulary is closed:
// appending an unknown op is logged as a warning but still recorded,
// so a misbehaving caller is visible in the trail itself.
type Op string

const (
	OpTaskCreated         Op = "task_created"
	OpTaskMoved           Op = "task_moved"
	OpPlanGenerated       Op = "plan_generated"
	OpTaskClassified      Op = "task_classified"
	OpTaskExecuted        Op = "task_executed"
	OpStepExecuted        Op = "step_executed"
	OpCredentialFlagged   Op = "credential_flagged"
	OpError               Op = "error"
	OpSLABreach           Op = "sla_breach"
	OpSLAPrediction       Op = "sla_prediction"
	OpRollbackTriggered   Op = "rollback_triggered"
	OpRollbackRestored    Op = "rollback_restored"
	OpGateBlocked         Op = "gate_blocked"
	OpOverrideApplied     Op = "override_applied"
	OpNotificationSent    Op = "notification_sent"
	OpNotificationFailed  Op = "notification_failed"
	OpHeartbeatFail       Op = "heartbeat_fail"
	OpRiskScored          Op = "risk_scored"
	OpSelfHealRetry       Op = "self_heal_retry"
	OpSelfHealAlternative Op = "self_heal_alternative"
	OpSelfHealPartial     Op = "self_heal_partial"
	OpLearningUpdate      Op = "learning_update"
	OpPriorityAdjusted    Op = "priority_adjusted"
	OpConcurrencyQueued   Op = "concurrency_queued"
)

var validOps = map[Op]bool{
	OpTaskCreated: true, OpTaskMoved: true, OpPlanGenerated: true,
	OpTaskClassified: true, OpTaskExecuted: true, OpStepExecuted: true,
	OpCredentialFlagged: true, OpError: true, OpSLABreach: true,
	OpSLAPrediction: true, OpRollbackTriggered: true, OpRollbackRestored: true,
	OpGateBlocked: true, OpOverrideApplied: true, OpNotificationSent: true,
	OpNotificationFailed: true, OpHeartbeatFail: true, OpRiskScored: true,
	OpSelfHealRetry: true, OpSelfHealAlternative: true, OpSelfHealPartial: true,
	OpLearningUpdate: true, OpPriorityAdjusted: true, OpConcurrencyQueued: true,
}

// Valid reports whether op belongs to the closed vocabulary.
func (o Op) Valid() bool {
	return validOps[o]
}

// Outcome classifies how an audited operation ended
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeFlagged Outcome = "flagged"
)

// Entry is one line of the operations log. Dst is the literal string
// "null" when the operation has no destination.
type Entry struct {
	TS      string  `json:"ts"`
	Op      Op      `json:"op"`
	File    string  `json:"file"`
	Src     string  `json:"src"`
	Dst     string  `json:"dst"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail"`
}

// Time parses the entry timestamp.
func (e Entry) Time() (time.Time, error) {
	return time.ParseInLocation(TimeLayout, e.TS, time.Local)
}

// Log is an append-only JSON Lines operations log. Appends are
// serialized by a mutex; write failures are logged and swallowed so
// audit problems never break the operation being audited.
type Log struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
	hook func(Op)
}

// NewLog creates a logger appending to the file at path. The file is
// created on first append.
func NewLog(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Path returns the log file location.
func (l *Log) Path() string {
	return l.path
}

// SetHook registers a callback observing every append. Set it once at
// startup, before the log is shared; the callback must not append.
func (l *Log) SetHook(fn func(Op)) {
	l.hook = fn
}

// Append records one operation. A dst of "" is stored as "null".
func (l *Log) Append(op Op, file, src, dst string, outcome Outcome, detail string) {
	if !op.Valid() {
		logger := log.WithComponent("audit")
		logger.Warn().
			Str("op", string(op)).
			Msg("operation not in audit vocabulary")
	}
	if dst == "" {
		dst = "null"
	}
	entry := Entry{
		TS:      l.now().Format(TimeLayout),
		Op:      op,
		File:    file,
		Src:     src,
		Dst:     dst,
		Outcome: outcome,
		Detail:  detail,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.write(entry); err != nil {
		logger := log.WithComponent("audit")
		logger.Error().
			Err(err).
			Str("op", string(op)).
			Msg("failed to append audit entry")
	}
	if l.hook != nil {
		l.hook(op)
	}
}

func (l *Log) write(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open operations log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	return nil
}

// Tail returns the most recent n entries, newest first. Malformed
// lines are skipped; a corrupt line never hides the rest of the log.
func (l *Log) Tail(n int) []Entry {
	entries := l.readAll()
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	// Reverse to newest-first
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

// Filter returns entries matching op recorded at or after since, in
// file order. A zero op matches every operation.
func (l *Log) Filter(op Op, since time.Time) []Entry {
	var out []Entry
	for _, e := range l.readAll() {
		if op != "" && e.Op != op {
			continue
		}
		if !since.IsZero() {
			ts, err := e.Time()
			if err != nil || ts.Before(since) {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// CountErrors counts entries with a failed outcome within the window.
// An entry whose timestamp cannot be parsed still counts: a failure
// with a mangled clock is still a failure.
func (l *Log) CountErrors(window time.Duration) int {
	cutoff := l.now().Add(-window)
	count := 0
	for _, e := range l.readAll() {
		if e.Outcome != OutcomeFailed {
			continue
		}
		ts, err := e.Time()
		if err != nil || !ts.Before(cutoff) {
			count++
		}
	}
	return count
}

// Errors returns the most recent n failed entries, newest first.
func (l *Log) Errors(n int) []Entry {
	var failed []Entry
	for _, e := range l.readAll() {
		if e.Outcome == OutcomeFailed {
			failed = append(failed, e)
		}
	}
	if len(failed) > n {
		failed = failed[len(failed)-n:]
	}
	for i, j := 0, len(failed)-1; i < j; i, j = i+1, j-1 {
		failed[i], failed[j] = failed[j], failed[i]
	}
	return failed
}

func (l *Log) readAll() []Entry {
	f, err := os.Open(l.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}
