package dashboard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/events"
	"github.com/cuemby/hutch/pkg/types"
	"github.com/cuemby/hutch/pkg/vault"
)

type fakeCounter int

func (f fakeCounter) TotalSamples() int { return int(f) }

func newUpdater(t *testing.T) (*Updater, *vault.Vault, *audit.Log) {
	t.Helper()
	v := vault.New(filepath.Join(t.TempDir(), "vault"))
	require.NoError(t, v.Init())
	auditLog := audit.NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	return New(v, auditLog, nil), v, auditLog
}

func seedTask(t *testing.T, v *vault.Vault, folder, name string, task *types.Task) {
	t.Helper()
	require.NoError(t, v.WriteTask(folder, name, task, "# Task: Seed\n"))
}

func readDashboard(t *testing.T, v *vault.Vault) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(v.Root(), vault.DashboardFile))
	require.NoError(t, err)
	return string(data)
}

func TestCountsFolders(t *testing.T) {
	u, v, _ := newUpdater(t)
	seedTask(t, v, vault.FolderNeedsAction, "t1.md", &types.Task{Status: types.StatusPending, Version: 1})
	seedTask(t, v, vault.FolderNeedsAction, "t2.md", &types.Task{Status: types.StatusPending, Version: 1})
	seedTask(t, v, vault.FolderInProgress, "t3.md", &types.Task{Status: types.StatusInProgress, Version: 1})
	seedTask(t, v, vault.FolderPlans, "p1.md", &types.Task{Version: 1})

	require.NoError(t, u.Refresh(false))
	content := readDashboard(t, v)

	assert.Contains(t, content, "- **Pending Tasks**: 2")
	assert.Contains(t, content, "- **In-Progress Tasks**: 1")
	assert.Contains(t, content, "- **Completed All-Time**: 0")
	assert.Contains(t, content, "- **Plans Generated**: 1")
}

func TestActivityEntryLimit(t *testing.T) {
	u, _, _ := newUpdater(t)

	for i := 0; i < 15; i++ {
		u.AddActivity(fmt.Sprintf("Activity %d", i))
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	assert.Len(t, u.activity, maxActivityEntries)
	assert.Contains(t, u.activity[len(u.activity)-1], "Activity 14")
	assert.Contains(t, u.activity[0], "Activity 5")
}

func TestActivityRendersNewestFirst(t *testing.T) {
	u, v, _ := newUpdater(t)
	u.AddActivity("First thing")
	u.AddActivity("Second thing")

	require.NoError(t, u.Refresh(false))
	content := readDashboard(t, v)

	first := strings.Index(content, "First thing")
	second := strings.Index(content, "Second thing")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, second, first, "newest entry should render first")
}

func TestEmptyActivityLog(t *testing.T) {
	u, v, _ := newUpdater(t)

	require.NoError(t, u.Refresh(false))
	assert.Contains(t, readDashboard(t, v), "- No recent activity")
}

func TestActivitySurvivesRestart(t *testing.T) {
	u, v, auditLog := newUpdater(t)
	u.AddActivity("Task created: carry-over.md")
	require.NoError(t, u.Refresh(false))

	// A fresh updater over the same vault reloads the section
	reborn := New(v, auditLog, nil)
	require.NoError(t, reborn.Refresh(false))
	assert.Contains(t, readDashboard(t, v), "Task created: carry-over.md")
}

func TestAvgCompletionTime(t *testing.T) {
	u, v, _ := newUpdater(t)

	created := time.Date(2026, 2, 10, 10, 0, 0, 0, time.Local)
	seedTask(t, v, vault.FolderDone, "timed1.md", &types.Task{
		Status: types.StatusDone, Version: 2,
		Created: created, Updated: created.Add(5 * time.Minute),
	})
	seedTask(t, v, vault.FolderDone, "timed2.md", &types.Task{
		Status: types.StatusDone, Version: 2,
		Created: created, Updated: created.Add(10 * time.Minute),
	})

	assert.Equal(t, "7.5m", u.avgCompletionTime())
}

func TestAvgCompletionTimeNoTimestamps(t *testing.T) {
	u, v, _ := newUpdater(t)
	seedTask(t, v, vault.FolderDone, "notimed.md", &types.Task{Status: types.StatusDone, Version: 1})

	assert.Equal(t, "N/A", u.avgCompletionTime())
}

func TestErrorRate(t *testing.T) {
	u, v, auditLog := newUpdater(t)
	auditLog.Append(audit.OpTaskCreated, "ok.md", "watcher", "", audit.OutcomeSuccess, "")
	auditLog.Append(audit.OpError, "bad.md", "executor", "", audit.OutcomeFailed, "boom")
	auditLog.Append(audit.OpError, "bad2.md", "executor", "", audit.OutcomeFailed, "again")

	require.NoError(t, u.Refresh(false))
	content := readDashboard(t, v)

	assert.Contains(t, content, "- **Error Rate (24h)**: 2 error(s) in 24h")
	assert.Contains(t, content, "bad.md")
	assert.Contains(t, content, "boom")
}

func TestNoAuditLogSectionsDegrade(t *testing.T) {
	v := vault.New(filepath.Join(t.TempDir(), "vault"))
	require.NoError(t, v.Init())
	u := New(v, nil, nil)

	require.NoError(t, u.Refresh(false))
	content := readDashboard(t, v)

	assert.Contains(t, content, "N/A (no audit log)")
	assert.Contains(t, content, "- No audit log configured")
	assert.Contains(t, content, "- No alerts (audit log not configured)")
}

func TestSLAComplianceAndThroughput(t *testing.T) {
	u, v, auditLog := newUpdater(t)
	auditLog.Append(audit.OpTaskExecuted, "a.md", "In_Progress", "", audit.OutcomeSuccess, "op:summarize")
	auditLog.Append(audit.OpTaskExecuted, "b.md", "In_Progress", "", audit.OutcomeSuccess, "op:file_create")
	auditLog.Append(audit.OpTaskExecuted, "c.md", "In_Progress", "", audit.OutcomeFailed, "op:unknown")
	auditLog.Append(audit.OpSLABreach, "c.md", "sla_tracker", "", audit.OutcomeFlagged, "exceeded")

	require.NoError(t, u.Refresh(false))
	content := readDashboard(t, v)

	assert.Contains(t, content, "- **SLA Compliance (24h)**: 66.7% (3 tasks)")
	assert.Contains(t, content, "(2 in 24h)")
}

func TestSLAComplianceNoTasks(t *testing.T) {
	u, _, _ := newUpdater(t)
	assert.Equal(t, "100.0% (0 tasks)", u.slaCompliance())
}

func TestRiskDistribution(t *testing.T) {
	u, _, auditLog := newUpdater(t)
	auditLog.Append(audit.OpRiskScored, "a.md", "risk_engine", "", audit.OutcomeSuccess, "composite=0.85 complexity=0.9")
	auditLog.Append(audit.OpRiskScored, "b.md", "risk_engine", "", audit.OutcomeSuccess, "composite=0.55")
	auditLog.Append(audit.OpRiskScored, "c.md", "risk_engine", "", audit.OutcomeSuccess, "composite=0.10")
	auditLog.Append(audit.OpRiskScored, "d.md", "risk_engine", "", audit.OutcomeSuccess, "composite=0.41")

	assert.Equal(t, "High:1 Med:2 Low:1", u.riskDistribution())
}

func TestLearningPoints(t *testing.T) {
	v := vault.New(filepath.Join(t.TempDir(), "vault"))
	require.NoError(t, v.Init())

	u := New(v, nil, fakeCounter(42))
	require.NoError(t, u.Refresh(false))
	assert.Contains(t, readDashboard(t, v), "- **Learning Data Points**: 42")
}

func TestActiveAlerts(t *testing.T) {
	u, v, auditLog := newUpdater(t)
	auditLog.Append(audit.OpTaskExecuted, "broken.md", "In_Progress", "", audit.OutcomeFailed, "op:multi_step")
	auditLog.Append(audit.OpCredentialFlagged, "leaky.md", "Needs_Action", "", audit.OutcomeFlagged, "pattern:aws_access_key line:3")
	auditLog.Append(audit.OpTaskExecuted, "fine.md", "In_Progress", "", audit.OutcomeSuccess, "op:summarize")

	require.NoError(t, u.Refresh(false))
	content := readDashboard(t, v)

	assert.Contains(t, content, "**[CRITICAL]**")
	assert.Contains(t, content, "Execution failure")
	assert.Contains(t, content, "broken.md")
	assert.Contains(t, content, "Credential detected")
	assert.Contains(t, content, "leaky.md")
	assert.NotContains(t, content, "fine.md")
}

func TestSelfHealRecoveries(t *testing.T) {
	u, _, auditLog := newUpdater(t)
	auditLog.Append(audit.OpSelfHealRetry, "a.md", "self_healing", "", audit.OutcomeSuccess, "attempt:1")
	auditLog.Append(audit.OpSelfHealRetry, "b.md", "self_healing", "", audit.OutcomeFailed, "attempt:3")
	auditLog.Append(audit.OpSelfHealAlternative, "b.md", "self_healing", "", audit.OutcomeSuccess, "strategy:alternative")

	assert.Equal(t, "2/3 successful", u.selfHealRecoveries())
}

func TestWatcherStatusLine(t *testing.T) {
	u, v, _ := newUpdater(t)

	require.NoError(t, u.Refresh(true))
	assert.Contains(t, readDashboard(t, v), "- **File Watcher**: Running")

	require.NoError(t, u.Refresh(false))
	assert.Contains(t, readDashboard(t, v), "- **File Watcher**: Stopped")
}

func TestSubscribeFeedsActivity(t *testing.T) {
	u, v, _ := newUpdater(t)

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	u.Subscribe(broker)
	broker.Publish(&events.Event{Type: events.EventTaskCreated, Message: "Task created: live.md"})

	require.Eventually(t, func() bool {
		u.mu.Lock()
		defer u.mu.Unlock()
		return len(u.activity) == 1
	}, 2*time.Second, 10*time.Millisecond)

	u.Unsubscribe(broker)

	require.NoError(t, u.Refresh(false))
	assert.Contains(t, readDashboard(t, v), "Task created: live.md")
}

func TestTemplateSections(t *testing.T) {
	u, v, _ := newUpdater(t)
	require.NoError(t, u.Refresh(false))
	content := readDashboard(t, v)

	for _, section := range []string{
		"# Dashboard",
		"**Last Updated**:",
		"## Recent Activity",
		"## Statistics",
		"## Metrics",
		"- **Average Completion Time**:",
		"- **Rollback Incidents (24h)**:",
		"## Intelligence",
		"- **Predictive SLA Alerts (24h)**:",
		"- **Risk Score Distribution**:",
		"## Active Alerts",
		"## Recent Errors",
		"## Watcher Status",
	} {
		assert.Contains(t, content, section)
	}
}

func TestCompletedToday(t *testing.T) {
	u, v, _ := newUpdater(t)
	seedTask(t, v, vault.FolderDone, "today.md", &types.Task{Status: types.StatusDone, Version: 1})

	// Freshly written file has today's mtime
	assert.Equal(t, 1, u.countCompletedToday())

	// Backdate a second file two days
	seedTask(t, v, vault.FolderDone, "older.md", &types.Task{Status: types.StatusDone, Version: 1})
	old := time.Now().AddDate(0, 0, -2)
	require.NoError(t, os.Chtimes(filepath.Join(v.Dir(vault.FolderDone), "older.md"), old, old))

	assert.Equal(t, 1, u.countCompletedToday())
}
