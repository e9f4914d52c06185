package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	return NewLog(filepath.Join(t.TempDir(), "operations.log"))
}

func TestAppendWritesJSONLines(t *testing.T) {
	l := newTestLog(t)
	l.Append(OpTaskCreated, "task-a.md", "inbox", "Needs_Action", OutcomeSuccess, "source:watcher")
	l.Append(OpTaskMoved, "task-a.md", "Needs_Action", "In_Progress", OutcomeSuccess, "")

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)

	lines := splitLines(data)
	require.Len(t, lines, 2)

	var first Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, OpTaskCreated, first.Op)
	assert.Equal(t, "task-a.md", first.File)
	assert.Equal(t, "inbox", first.Src)
	assert.Equal(t, "Needs_Action", first.Dst)
	assert.Equal(t, OutcomeSuccess, first.Outcome)

	ts, err := first.Time()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, 5*time.Second)
}

func TestAppendNullDst(t *testing.T) {
	l := newTestLog(t)
	l.Append(OpLearningUpdate, "document", "learning_engine", "", OutcomeSuccess, "task_type=document total_count=1")

	entries := l.Tail(1)
	require.Len(t, entries, 1)
	assert.Equal(t, "null", entries[0].Dst)
}

func TestAppendUnknownOpStillRecorded(t *testing.T) {
	l := newTestLog(t)
	l.Append(Op("made_up_op"), "f", "s", "", OutcomeSuccess, "")

	entries := l.Tail(1)
	require.Len(t, entries, 1)
	assert.Equal(t, Op("made_up_op"), entries[0].Op)
}

func TestAppendUnwritableSinkDoesNotPanic(t *testing.T) {
	l := NewLog(filepath.Join(t.TempDir(), "no", "such", "dir", "ops.log"))
	assert.NotPanics(t, func() {
		l.Append(OpTaskCreated, "f", "s", "", OutcomeSuccess, "")
	})
}

func TestTailNewestFirst(t *testing.T) {
	l := newTestLog(t)
	ops := []Op{OpTaskCreated, OpPlanGenerated, OpTaskClassified, OpTaskExecuted}
	for _, op := range ops {
		l.Append(op, "task.md", "src", "", OutcomeSuccess, "")
	}

	entries := l.Tail(3)
	require.Len(t, entries, 3)
	assert.Equal(t, OpTaskExecuted, entries[0].Op)
	assert.Equal(t, OpTaskClassified, entries[1].Op)
	assert.Equal(t, OpPlanGenerated, entries[2].Op)
}

func TestTailSkipsMalformedLines(t *testing.T) {
	l := newTestLog(t)
	l.Append(OpTaskCreated, "a.md", "inbox", "", OutcomeSuccess, "")

	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json at all\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l.Append(OpTaskMoved, "a.md", "Needs_Action", "Done", OutcomeSuccess, "")

	entries := l.Tail(10)
	require.Len(t, entries, 2)
	assert.Equal(t, OpTaskMoved, entries[0].Op)
	assert.Equal(t, OpTaskCreated, entries[1].Op)
}

func TestFilterByOpAndSince(t *testing.T) {
	l := newTestLog(t)

	old := time.Now().Add(-2 * time.Hour)
	l.now = func() time.Time { return old }
	l.Append(OpSLABreach, "old.md", "sla_tracker", "", OutcomeFlagged, "")

	l.now = time.Now
	l.Append(OpSLABreach, "new.md", "sla_tracker", "", OutcomeFlagged, "")
	l.Append(OpTaskExecuted, "new.md", "In_Progress", "", OutcomeSuccess, "")

	breaches := l.Filter(OpSLABreach, time.Time{})
	require.Len(t, breaches, 2)

	recent := l.Filter(OpSLABreach, time.Now().Add(-time.Hour))
	require.Len(t, recent, 1)
	assert.Equal(t, "new.md", recent[0].File)

	all := l.Filter("", time.Time{})
	assert.Len(t, all, 3)
}

func TestCountErrors(t *testing.T) {
	l := newTestLog(t)

	old := time.Now().Add(-48 * time.Hour)
	l.now = func() time.Time { return old }
	l.Append(OpTaskExecuted, "old.md", "In_Progress", "", OutcomeFailed, "")

	l.now = time.Now
	l.Append(OpTaskExecuted, "a.md", "In_Progress", "", OutcomeFailed, "")
	l.Append(OpTaskExecuted, "b.md", "In_Progress", "", OutcomeSuccess, "")
	l.Append(OpHeartbeatFail, "system", "cmd_loop", "", OutcomeFailed, "")

	assert.Equal(t, 2, l.CountErrors(24*time.Hour))
	assert.Equal(t, 3, l.CountErrors(72*time.Hour))
}

func TestCountErrorsUnparseableTimestampStillCounts(t *testing.T) {
	l := newTestLog(t)

	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"ts":"garbage","op":"task_executed","file":"x.md","src":"s","dst":"null","outcome":"failed","detail":""}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, 1, l.CountErrors(time.Hour))
}

func TestErrorsNewestFirst(t *testing.T) {
	l := newTestLog(t)
	l.Append(OpTaskExecuted, "a.md", "In_Progress", "", OutcomeFailed, "first")
	l.Append(OpTaskExecuted, "b.md", "In_Progress", "", OutcomeSuccess, "")
	l.Append(OpRollbackTriggered, "c.md", "In_Progress", "", OutcomeFailed, "second")

	errs := l.Errors(5)
	require.Len(t, errs, 2)
	assert.Equal(t, "second", errs[0].Detail)
	assert.Equal(t, "first", errs[1].Detail)
}

func TestConcurrentAppends(t *testing.T) {
	l := newTestLog(t)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 20; j++ {
				l.Append(OpStepExecuted, "task.md", "In_Progress", "", OutcomeSuccess, "")
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	entries := l.Filter(OpStepExecuted, time.Time{})
	assert.Len(t, entries, 200)
}

func TestOpValid(t *testing.T) {
	assert.True(t, OpTaskCreated.Valid())
	assert.True(t, OpConcurrencyQueued.Valid())
	assert.True(t, OpSelfHealAlternative.Valid())
	assert.False(t, Op("bogus").Valid())
}

func splitLines(data []byte) []string {
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, string(data[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return lines
}
