// Package dashboard renders Dashboard.md at the vault root from task
// counts, audit history and learning data.
package dashboard

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/events"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/vault"
)

// maxActivityEntries caps the Recent Activity section.
const maxActivityEntries = 10

// alertWindow scopes the Metrics and Intelligence sections.
const alertWindow = 24 * time.Hour

// LearningCounter is the slice of the learning store the dashboard
// reads.
type LearningCounter interface {
	TotalSamples() int
}

// alertTrigger classifies an audit entry as an operator-facing alert.
type alertTrigger struct {
	outcome  audit.Outcome
	severity string
	label    string
}

var alertTriggers = map[audit.Op]alertTrigger{
	audit.OpTaskExecuted:      {audit.OutcomeFailed, "critical", "Execution failure"},
	audit.OpSLABreach:         {audit.OutcomeFlagged, "warning", "SLA breach"},
	audit.OpCredentialFlagged: {audit.OutcomeFlagged, "critical", "Credential detected"},
	audit.OpRollbackTriggered: {audit.OutcomeFailed, "warning", "Rollback triggered"},
	audit.OpHeartbeatFail:     {audit.OutcomeFailed, "critical", "Heartbeat failure"},
}

// Updater maintains Dashboard.md. The activity log survives restarts:
// existing entries are reloaded from the file itself.
type Updater struct {
	vault    *vault.Vault
	auditLog *audit.Log
	learning LearningCounter

	mu       sync.Mutex
	activity []string

	sub     events.Subscriber
	subDone chan struct{}

	now func() time.Time
}

// New creates an updater. auditLog and learning may be nil; the
// corresponding sections then render as not available.
func New(v *vault.Vault, auditLog *audit.Log, learning LearningCounter) *Updater {
	u := &Updater{
		vault:    v,
		auditLog: auditLog,
		learning: learning,
		now:      time.Now,
	}
	u.loadActivity()
	return u
}

// loadActivity restores the Recent Activity section from an existing
// Dashboard.md.
func (u *Updater) loadActivity() {
	data, err := os.ReadFile(u.path())
	if err != nil {
		return
	}

	inSection := false
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.Contains(line, "## Recent Activity"):
			inSection = true
		case inSection && strings.HasPrefix(line, "##"):
			inSection = false
		case inSection && strings.HasPrefix(line, "- "):
			entry := strings.TrimPrefix(line, "- ")
			if entry != "No recent activity" {
				u.activity = append(u.activity, entry)
			}
		}
	}
	if len(u.activity) > maxActivityEntries {
		u.activity = u.activity[len(u.activity)-maxActivityEntries:]
	}
}

func (u *Updater) path() string {
	return filepath.Join(u.vault.Root(), vault.DashboardFile)
}

// AddActivity appends a timestamped entry to the activity log.
func (u *Updater) AddActivity(message string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	entry := fmt.Sprintf("%s: %s", u.now().Format("2006-01-02 15:04"), message)
	u.activity = append(u.activity, entry)
	if len(u.activity) > maxActivityEntries {
		u.activity = u.activity[len(u.activity)-maxActivityEntries:]
	}
}

// Subscribe attaches the updater to a broker; every published event
// message becomes an activity entry. Call Unsubscribe before stopping
// the broker.
func (u *Updater) Subscribe(b *events.Broker) {
	u.sub = b.Subscribe()
	u.subDone = make(chan struct{})
	go func() {
		defer close(u.subDone)
		for event := range u.sub {
			if event.Message != "" {
				u.AddActivity(event.Message)
			}
		}
	}()
}

// Unsubscribe detaches from the broker and waits for the feed to drain.
func (u *Updater) Unsubscribe(b *events.Broker) {
	if u.sub == nil {
		return
	}
	b.Unsubscribe(u.sub)
	<-u.subDone
	u.sub = nil
}

// Refresh rewrites Dashboard.md from current state.
func (u *Updater) Refresh(watcherRunning bool) error {
	ts := u.now().Format("2006-01-02 15:04:05")

	var b strings.Builder
	fmt.Fprintf(&b, "# Dashboard\n\n")
	fmt.Fprintf(&b, "**Last Updated**: %s\n", ts)
	fmt.Fprintf(&b, "**Last Active**: %s\n\n", ts)

	fmt.Fprintf(&b, "## Recent Activity\n\n%s\n\n", u.activityLog())

	fmt.Fprintf(&b, "## Statistics\n\n")
	fmt.Fprintf(&b, "- **Pending Tasks**: %d\n", u.countFolder(vault.FolderNeedsAction))
	fmt.Fprintf(&b, "- **In-Progress Tasks**: %d\n", u.countFolder(vault.FolderInProgress))
	fmt.Fprintf(&b, "- **Completed Today**: %d\n", u.countCompletedToday())
	fmt.Fprintf(&b, "- **Completed All-Time**: %d\n", u.countFolder(vault.FolderDone))
	fmt.Fprintf(&b, "- **Plans Generated**: %d\n\n", u.countFolder(vault.FolderPlans))

	fmt.Fprintf(&b, "## Metrics\n\n")
	fmt.Fprintf(&b, "- **Average Completion Time**: %s\n", u.avgCompletionTime())
	fmt.Fprintf(&b, "- **Error Rate (24h)**: %s\n", u.errorRate())
	fmt.Fprintf(&b, "- **Rollback Incidents (24h)**: %d\n", u.countSince(audit.OpRollbackTriggered))
	fmt.Fprintf(&b, "- **SLA Compliance (24h)**: %s\n", u.slaCompliance())
	fmt.Fprintf(&b, "- **Throughput (24h)**: %s\n\n", u.throughput())

	fmt.Fprintf(&b, "## Intelligence\n\n")
	fmt.Fprintf(&b, "- **Predictive SLA Alerts (24h)**: %s\n", u.slaPredictions())
	fmt.Fprintf(&b, "- **Self-Healing Recoveries (24h)**: %s\n", u.selfHealRecoveries())
	fmt.Fprintf(&b, "- **Risk Score Distribution**: %s\n", u.riskDistribution())
	fmt.Fprintf(&b, "- **Learning Data Points**: %s\n\n", u.learningPoints())

	fmt.Fprintf(&b, "## Active Alerts\n\n%s\n\n", u.activeAlerts(maxActivityEntries))
	fmt.Fprintf(&b, "## Recent Errors\n\n%s\n\n", u.recentErrors(5))
	fmt.Fprintf(&b, "## Watcher Status\n\n%s\n", u.watcherStatus(watcherRunning))

	if err := os.WriteFile(u.path(), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write dashboard: %w", err)
	}
	logger := log.WithComponent("dashboard")
	logger.Debug().Msg("Dashboard refreshed")
	return nil
}

func (u *Updater) activityLog() string {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.activity) == 0 {
		return "- No recent activity"
	}

	// Newest first
	lines := make([]string, 0, len(u.activity))
	for i := len(u.activity) - 1; i >= 0; i-- {
		lines = append(lines, "- "+u.activity[i])
	}
	return strings.Join(lines, "\n")
}

func (u *Updater) countFolder(folder string) int {
	files, err := u.vault.List(folder)
	if err != nil {
		return 0
	}
	return len(files)
}

func (u *Updater) countCompletedToday() int {
	files, err := u.vault.List(vault.FolderDone)
	if err != nil {
		return 0
	}

	y, m, d := u.now().Date()
	count := 0
	for _, name := range files {
		info, err := os.Stat(filepath.Join(u.vault.Dir(vault.FolderDone), name))
		if err != nil {
			continue
		}
		fy, fm, fd := info.ModTime().Date()
		if fy == y && fm == m && fd == d {
			count++
		}
	}
	return count
}

// avgCompletionTime averages created-to-updated deltas over Done tasks.
func (u *Updater) avgCompletionTime() string {
	files, err := u.vault.List(vault.FolderDone)
	if err != nil {
		return "N/A"
	}

	var total float64
	var n int
	for _, name := range files {
		task, _, err := u.vault.ReadTask(vault.FolderDone, name)
		if err != nil || task.Created.IsZero() || task.Updated.IsZero() {
			continue
		}
		if delta := task.Updated.Sub(task.Created).Seconds(); delta > 0 {
			total += delta
			n++
		}
	}
	if n == 0 {
		return "N/A"
	}

	avg := total / float64(n)
	switch {
	case avg < 60:
		return fmt.Sprintf("%.0fs", avg)
	case avg < 3600:
		return fmt.Sprintf("%.1fm", avg/60)
	default:
		return fmt.Sprintf("%.1fh", avg/3600)
	}
}

func (u *Updater) errorRate() string {
	if u.auditLog == nil {
		return "N/A (no audit log)"
	}
	return fmt.Sprintf("%d error(s) in 24h", u.auditLog.CountErrors(alertWindow))
}

func (u *Updater) countSince(op audit.Op) int {
	if u.auditLog == nil {
		return 0
	}
	return len(u.auditLog.Filter(op, u.now().Add(-alertWindow)))
}

func (u *Updater) slaCompliance() string {
	if u.auditLog == nil {
		return "N/A"
	}
	since := u.now().Add(-alertWindow)
	executed := len(u.auditLog.Filter(audit.OpTaskExecuted, since))
	breached := len(u.auditLog.Filter(audit.OpSLABreach, since))
	if executed == 0 {
		return "100.0% (0 tasks)"
	}
	pct := float64(executed-breached) / float64(executed) * 100
	return fmt.Sprintf("%.1f%% (%d tasks)", pct, executed)
}

func (u *Updater) throughput() string {
	if u.auditLog == nil {
		return "N/A"
	}
	completed := 0
	for _, e := range u.auditLog.Filter(audit.OpTaskExecuted, u.now().Add(-alertWindow)) {
		if e.Outcome == audit.OutcomeSuccess {
			completed++
		}
	}
	rate := float64(completed) / alertWindow.Hours()
	return fmt.Sprintf("%.1f tasks/hour (%d in 24h)", rate, completed)
}

func (u *Updater) slaPredictions() string {
	if u.auditLog == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d alert(s)", u.countSince(audit.OpSLAPrediction))
}

func (u *Updater) selfHealRecoveries() string {
	if u.auditLog == nil {
		return "N/A"
	}
	since := u.now().Add(-alertWindow)
	healed, attempted := 0, 0
	for _, op := range []audit.Op{audit.OpSelfHealRetry, audit.OpSelfHealAlternative, audit.OpSelfHealPartial} {
		for _, e := range u.auditLog.Filter(op, since) {
			attempted++
			if e.Outcome == audit.OutcomeSuccess {
				healed++
			}
		}
	}
	return fmt.Sprintf("%d/%d successful", healed, attempted)
}

// riskDistribution buckets recent composite risk scores.
func (u *Updater) riskDistribution() string {
	if u.auditLog == nil {
		return "N/A"
	}

	high, med, low := 0, 0, 0
	for _, e := range u.auditLog.Tail(200) {
		if e.Op != audit.OpRiskScored {
			continue
		}
		for _, part := range strings.Fields(e.Detail) {
			if !strings.HasPrefix(part, "composite=") {
				continue
			}
			score, err := strconv.ParseFloat(strings.TrimPrefix(part, "composite="), 64)
			if err != nil {
				break
			}
			switch {
			case score > 0.7:
				high++
			case score > 0.4:
				med++
			default:
				low++
			}
			break
		}
	}
	return fmt.Sprintf("High:%d Med:%d Low:%d", high, med, low)
}

func (u *Updater) learningPoints() string {
	if u.learning == nil {
		return "0"
	}
	return strconv.Itoa(u.learning.TotalSamples())
}

func (u *Updater) activeAlerts(n int) string {
	if u.auditLog == nil {
		return "- No alerts (audit log not configured)"
	}

	var alerts []string
	for _, e := range u.auditLog.Tail(100) {
		trigger, ok := alertTriggers[e.Op]
		if !ok || e.Outcome != trigger.outcome {
			continue
		}
		icon := "\U0001F7E1" // yellow circle
		if trigger.severity == "critical" {
			icon = "\U0001F534" // red circle
		}
		alerts = append(alerts, fmt.Sprintf("- %s **[%s]** %s: %s: %s",
			icon, strings.ToUpper(trigger.severity), e.TS, trigger.label, e.File))
		if len(alerts) >= n {
			break
		}
	}
	if len(alerts) == 0 {
		return "- No active alerts"
	}
	return strings.Join(alerts, "\n")
}

func (u *Updater) recentErrors(n int) string {
	if u.auditLog == nil {
		return "- No audit log configured"
	}

	errors := u.auditLog.Errors(n)
	if len(errors) == 0 {
		return "- No recent errors"
	}

	lines := make([]string, 0, len(errors))
	for _, e := range errors {
		detail := e.Detail
		if detail == "" {
			detail = "no detail"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s: %s", e.TS, e.File, detail))
	}
	return strings.Join(lines, "\n")
}

func (u *Updater) watcherStatus(running bool) string {
	status := "Stopped"
	if running {
		status = "Running"
	}
	return fmt.Sprintf("- **File Watcher**: %s", status)
}
