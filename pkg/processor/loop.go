package processor

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/dashboard"
	"github.com/cuemby/hutch/pkg/health"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/mover"
	"github.com/cuemby/hutch/pkg/scanner"
	"github.com/cuemby/hutch/pkg/vault"
)

// Parts are the collaborators the orchestration loop drives each
// cycle. Scanner, Heartbeat, and Dashboard may be nil; the matching
// stage is then skipped. WatcherRunning feeds the dashboard's watcher
// indicator and may be nil.
type Parts struct {
	Mover          *mover.Mover
	Scanner        *scanner.Scanner
	Heartbeat      *health.Heartbeat
	Dashboard      *dashboard.Updater
	WatcherRunning func() bool
}

// maintenanceInterval paces the learning store's retention sweep. The
// first cycle after start always runs one.
const maintenanceInterval = 24 * time.Hour

// Loop runs the orchestration cycle on a fixed cadence: scan, purge,
// move, sweep timeouts, admit queued work, process pending tasks,
// heartbeat, refresh the dashboard.
type Loop struct {
	cfg       *config.Config
	vault     *vault.Vault
	processor *Processor
	parts     Parts
	interval  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	lastMaintenance time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewLoop creates the orchestration loop. Call Start to begin cycling.
func NewLoop(cfg *config.Config, v *vault.Vault, proc *Processor, parts Parts) *Loop {
	return &Loop{
		cfg:       cfg,
		vault:     v,
		processor: proc,
		parts:     parts,
		interval:  time.Duration(cfg.CheckIntervalSeconds) * time.Second,
	}
}

// Start begins the cycle. The first pass runs immediately rather than
// waiting out the interval. Non-blocking; use Stop to shut down.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.running = true
	l.mu.Unlock()

	log.WithComponent("loop").Info().
		Dur("interval", l.interval).
		Msg("Orchestration loop started")

	go l.run()
}

// Stop halts the cycle, waits for in-flight workers, and leaves the
// dashboard reflecting the final state.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.mu.Unlock()

	close(l.stopCh)
	<-l.doneCh
	l.cancel()

	l.processor.Wait()
	l.refreshDashboard()
	log.WithComponent("loop").Info().Msg("Orchestration loop stopped")
}

// Running reports whether the loop is cycling.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) run() {
	defer close(l.doneCh)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick()
	for {
		select {
		case <-ticker.C:
			l.tick()
		case <-l.stopCh:
			return
		}
	}
}

// tick performs one orchestration cycle. Stage order matters:
// housekeeping clears the board before new work is planned and
// admitted.
func (l *Loop) tick() {
	lg := log.WithComponent("loop")

	if l.parts.Scanner != nil {
		if findings := l.parts.Scanner.ScanVault(l.vault); len(findings) > 0 {
			lg.Warn().Int("findings", len(findings)).Msg("Credential scan flagged content")
		}
	}

	if purged := l.processor.Rollback().PurgeExpired(); purged > 0 {
		lg.Info().Int("purged", purged).Msg("Expired rollback snapshots removed")
	}

	if time.Since(l.lastMaintenance) >= maintenanceInterval {
		l.processor.MaintainStore()
		l.lastMaintenance = time.Now()
	}

	if moved := l.parts.Mover.CheckAndMove(); moved > 0 {
		lg.Info().Int("moved", moved).Msg("Tasks relocated by status")
	}

	for _, name := range l.processor.Controller().CheckTimeouts() {
		l.processor.FailTimedOut(name)
	}

	if admitted := l.processor.DrainQueue(l.ctx); admitted > 0 {
		lg.Info().Int("admitted", admitted).Msg("Queued tasks admitted")
	}

	if plans := l.processor.ProcessAllPending(l.ctx); plans > 0 {
		lg.Info().Int("plans", plans).Msg("Pending tasks planned")
	}

	if l.parts.Heartbeat != nil {
		l.parts.Heartbeat.Run()
	}

	l.refreshDashboard()
}

func (l *Loop) refreshDashboard() {
	if l.parts.Dashboard == nil {
		return
	}
	watcherUp := false
	if l.parts.WatcherRunning != nil {
		watcherUp = l.parts.WatcherRunning()
	}
	if err := l.parts.Dashboard.Refresh(watcherUp); err != nil {
		log.WithComponent("loop").Warn().Err(err).Msg("Dashboard refresh failed")
	}
}
