package mover

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/cuemby/hutch/pkg/vault"
)

func newMover(t *testing.T) (*Mover, *vault.Vault, *audit.Log) {
	t.Helper()
	v := vault.New(filepath.Join(t.TempDir(), "vault"))
	require.NoError(t, v.Init())
	auditLog := audit.NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	return New(v, auditLog), v, auditLog
}

func seedTask(t *testing.T, v *vault.Vault, folder, name string, status types.TaskStatus) {
	t.Helper()
	task := &types.Task{Source: "test", Status: status, Version: 1}
	require.NoError(t, v.WriteTask(folder, name, task, "# Task: Seed\n"))
}

func exists(v *vault.Vault, folder, name string) bool {
	_, err := os.Stat(filepath.Join(v.Dir(folder), name))
	return err == nil
}

func TestCheckAndMoveEmptyVault(t *testing.T) {
	m, _, _ := newMover(t)
	assert.Equal(t, 0, m.CheckAndMove())
}

func TestMovesInProgressStatusToInProgress(t *testing.T) {
	m, v, _ := newMover(t)
	seedTask(t, v, vault.FolderNeedsAction, "task-ip.md", types.StatusInProgress)

	assert.Equal(t, 1, m.CheckAndMove())
	assert.False(t, exists(v, vault.FolderNeedsAction, "task-ip.md"))
	assert.True(t, exists(v, vault.FolderInProgress, "task-ip.md"))
}

func TestMovesDoneFromInProgressToDone(t *testing.T) {
	m, v, _ := newMover(t)
	seedTask(t, v, vault.FolderInProgress, "task-done.md", types.StatusDone)

	assert.Equal(t, 1, m.CheckAndMove())
	assert.False(t, exists(v, vault.FolderInProgress, "task-done.md"))
	assert.True(t, exists(v, vault.FolderDone, "task-done.md"))
}

func TestMovesDoneStraightFromNeedsAction(t *testing.T) {
	m, v, _ := newMover(t)
	seedTask(t, v, vault.FolderNeedsAction, "task-skip.md", types.StatusDone)

	assert.Equal(t, 1, m.CheckAndMove())
	assert.False(t, exists(v, vault.FolderNeedsAction, "task-skip.md"))
	assert.False(t, exists(v, vault.FolderInProgress, "task-skip.md"))
	assert.True(t, exists(v, vault.FolderDone, "task-skip.md"))
}

func TestPendingTaskStays(t *testing.T) {
	m, v, _ := newMover(t)
	seedTask(t, v, vault.FolderNeedsAction, "task-pending.md", types.StatusPending)

	assert.Equal(t, 0, m.CheckAndMove())
	assert.True(t, exists(v, vault.FolderNeedsAction, "task-pending.md"))
}

func TestInProgressTaskStaysUntilDone(t *testing.T) {
	m, v, _ := newMover(t)
	seedTask(t, v, vault.FolderInProgress, "task-stay.md", types.StatusInProgress)

	assert.Equal(t, 0, m.CheckAndMove())
	assert.True(t, exists(v, vault.FolderInProgress, "task-stay.md"))
}

func TestFailedTasksStayForReview(t *testing.T) {
	tests := []struct {
		name   string
		status types.TaskStatus
	}{
		{"failed", types.StatusFailed},
		{"failed_rollback", types.StatusFailedRollback},
		{"blocked", types.StatusBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, v, _ := newMover(t)
			seedTask(t, v, vault.FolderInProgress, "stuck.md", tt.status)

			assert.Equal(t, 0, m.CheckAndMove())
			assert.True(t, exists(v, vault.FolderInProgress, "stuck.md"))
		})
	}
}

func TestMovesMultipleTasks(t *testing.T) {
	m, v, _ := newMover(t)
	seedTask(t, v, vault.FolderNeedsAction, "task1.md", types.StatusInProgress)
	seedTask(t, v, vault.FolderInProgress, "task2.md", types.StatusDone)
	seedTask(t, v, vault.FolderNeedsAction, "task3.md", types.StatusPending)

	assert.Equal(t, 2, m.CheckAndMove())
	assert.True(t, exists(v, vault.FolderInProgress, "task1.md"))
	assert.True(t, exists(v, vault.FolderDone, "task2.md"))
	assert.True(t, exists(v, vault.FolderNeedsAction, "task3.md"))
}

func TestMoveIsAudited(t *testing.T) {
	m, v, auditLog := newMover(t)
	seedTask(t, v, vault.FolderNeedsAction, "logged.md", types.StatusInProgress)

	m.CheckAndMove()

	entries := auditLog.Filter(audit.OpTaskMoved, time.Time{})
	require.Len(t, entries, 1)
	assert.Equal(t, "logged.md", entries[0].File)
	assert.Equal(t, vault.FolderNeedsAction, entries[0].Src)
	assert.Equal(t, vault.FolderInProgress, entries[0].Dst)
	assert.Equal(t, audit.OutcomeSuccess, entries[0].Outcome)
}

func TestUnreadableTaskIsAuditedAndSkipped(t *testing.T) {
	m, v, auditLog := newMover(t)
	seedTask(t, v, vault.FolderNeedsAction, "good.md", types.StatusDone)

	// Frontmatter fence never closes
	bad := filepath.Join(v.Dir(vault.FolderNeedsAction), "bad.md")
	require.NoError(t, os.WriteFile(bad, []byte("---\nstatus: done\n# no closing fence"), 0o644))

	assert.Equal(t, 1, m.CheckAndMove())
	assert.True(t, exists(v, vault.FolderDone, "good.md"))
	assert.True(t, exists(v, vault.FolderNeedsAction, "bad.md"))

	errors := auditLog.Filter(audit.OpError, time.Time{})
	require.Len(t, errors, 1)
	assert.Equal(t, "bad.md", errors[0].File)
	assert.Equal(t, "task_mover", errors[0].Src)
	assert.Equal(t, audit.OutcomeFailed, errors[0].Outcome)
}

func TestMovementLogAppended(t *testing.T) {
	m, v, _ := newMover(t)
	seedTask(t, v, vault.FolderNeedsAction, "tracked.md", types.StatusInProgress)

	m.CheckAndMove()

	_, body, err := v.ReadTask(vault.FolderInProgress, "tracked.md")
	require.NoError(t, err)
	assert.Contains(t, body, "## Movement Log")
	assert.Contains(t, body, "Needs_Action")
	assert.Contains(t, body, "In_Progress")
}
