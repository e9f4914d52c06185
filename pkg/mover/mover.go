// Package mover reconciles task files with their frontmatter status,
// moving them between vault folders each tick.
package mover

import (
	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/cuemby/hutch/pkg/vault"
)

// Mover polls the vault and moves tasks whose status no longer matches
// their folder:
//
//	Needs_Action status=in_progress → In_Progress
//	Needs_Action status=done        → Done
//	In_Progress  status=done        → Done
//
// Failed, failed_rollback and blocked tasks stay in In_Progress for
// manual review.
type Mover struct {
	vault    *vault.Vault
	auditLog *audit.Log
}

// New creates a mover. The audit log may be nil.
func New(v *vault.Vault, auditLog *audit.Log) *Mover {
	return &Mover{vault: v, auditLog: auditLog}
}

// CheckAndMove polls both active folders once and returns the number of
// tasks moved. Per-task errors are logged and audited, not returned;
// one unreadable file must not stall the rest of the queue.
func (m *Mover) CheckAndMove() int {
	return m.checkNeedsAction() + m.checkInProgress()
}

func (m *Mover) checkNeedsAction() int {
	moved := 0
	names, err := m.vault.List(vault.FolderNeedsAction)
	if err != nil {
		logger := log.WithComponent("mover")
		logger.Error().Err(err).Msg("Failed to list Needs_Action")
		return 0
	}

	for _, name := range names {
		task, _, err := m.vault.ReadTask(vault.FolderNeedsAction, name)
		if err != nil {
			m.reportError(name, err)
			continue
		}

		switch task.Status {
		case types.StatusInProgress:
			if err := m.vault.MoveToInProgress(name); err != nil {
				m.reportError(name, err)
				continue
			}
			moved++
			m.reportMove(name, vault.FolderNeedsAction, vault.FolderInProgress)

		case types.StatusDone:
			if err := m.vault.MoveToDone(name); err != nil {
				m.reportError(name, err)
				continue
			}
			moved++
			m.reportMove(name, vault.FolderNeedsAction, vault.FolderDone)
		}
	}
	return moved
}

func (m *Mover) checkInProgress() int {
	moved := 0
	names, err := m.vault.List(vault.FolderInProgress)
	if err != nil {
		logger := log.WithComponent("mover")
		logger.Error().Err(err).Msg("Failed to list In_Progress")
		return 0
	}

	for _, name := range names {
		task, _, err := m.vault.ReadTask(vault.FolderInProgress, name)
		if err != nil {
			m.reportError(name, err)
			continue
		}

		switch task.Status {
		case types.StatusDone:
			if err := m.vault.MoveToDone(name); err != nil {
				m.reportError(name, err)
				continue
			}
			moved++
			m.reportMove(name, vault.FolderInProgress, vault.FolderDone)

		case types.StatusFailed, types.StatusFailedRollback, types.StatusBlocked:
			// Kept in place for manual review
			logger := log.WithComponent("mover")
			logger.Info().
				Str("task", name).
				Str("status", string(task.Status)).
				Msg("Keeping task in In_Progress for review")
		}
	}
	return moved
}

func (m *Mover) reportMove(name, src, dst string) {
	logger := log.WithComponent("mover")
	logger.Info().
		Str("task", name).
		Str("from", src).
		Str("to", dst).
		Msg("Moved task")
	if m.auditLog != nil {
		m.auditLog.Append(audit.OpTaskMoved, name, src, dst, audit.OutcomeSuccess, "")
	}
}

func (m *Mover) reportError(name string, err error) {
	logger := log.WithComponent("mover")
	logger.Error().
		Err(err).
		Str("task", name).
		Msg("Error checking task")
	if m.auditLog != nil {
		m.auditLog.Append(audit.OpError, name, "task_mover", "", audit.OutcomeFailed, err.Error())
	}
}
