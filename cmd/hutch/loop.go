package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/dashboard"
	"github.com/cuemby/hutch/pkg/events"
	"github.com/cuemby/hutch/pkg/health"
	"github.com/cuemby/hutch/pkg/learning"
	"github.com/cuemby/hutch/pkg/metrics"
	"github.com/cuemby/hutch/pkg/mover"
	"github.com/cuemby/hutch/pkg/notify"
	"github.com/cuemby/hutch/pkg/processor"
	"github.com/cuemby/hutch/pkg/scanner"
	"github.com/cuemby/hutch/pkg/vault"
	"github.com/cuemby/hutch/pkg/watcher"
	"github.com/spf13/cobra"
)

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Run the full orchestrator",
	Long: `Run the orchestrator: the file watcher ingests new work as it
arrives, and the processing loop plans, classifies, executes, and
records tasks on every cycle.

The loop runs until interrupted. SIGINT and SIGTERM trigger a graceful
stop that waits for in-flight executions to finish.`,
	RunE: runLoop,
}

func init() {
	loopCmd.Flags().Int("interval", 0, "Check interval in seconds (overrides config)")
	rootCmd.AddCommand(loopCmd)
}

func runLoop(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if interval, _ := cmd.Flags().GetInt("interval"); interval > 0 {
		cfg.CheckIntervalSeconds = interval
	}

	v := vault.New(cfg.VaultPath)
	if err := v.Init(); err != nil {
		return fmt.Errorf("failed to prepare vault: %v", err)
	}
	if err := os.MkdirAll(cfg.WatchDir, 0755); err != nil {
		return fmt.Errorf("failed to create watch directory: %v", err)
	}

	fmt.Println("Starting hutch orchestrator...")
	fmt.Printf("  Vault: %s\n", v.Root())
	fmt.Printf("  Inbox: %s\n", cfg.WatchDir)
	fmt.Printf("  Interval: %ds\n", cfg.CheckIntervalSeconds)
	fmt.Println()

	auditLog := audit.NewLog(cfg.OperationsLogPath)
	auditLog.SetHook(func(op audit.Op) {
		metrics.AuditEntries.WithLabelValues(string(op)).Inc()
	})

	store, err := learning.NewBoltStore(v.Dir(vault.FolderLearningData), cfg.LearningWindowDays, auditLog)
	if err != nil {
		return fmt.Errorf("failed to open learning store: %v", err)
	}
	defer store.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	notifier := notify.FromConfig(cfg.NotificationChannel, cfg.NotificationEndpoint, auditLog)
	proc := processor.New(v, cfg, auditLog, store, notifier, broker)

	dash := dashboard.New(v, auditLog, store)
	dash.Subscribe(broker)
	defer dash.Unsubscribe(broker)

	w, err := watcher.New(v, cfg.WatchDir, auditLog, broker)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %v", err)
	}
	fmt.Println("✓ Watcher started")

	hb := health.NewHeartbeat(auditLog, 3,
		health.NewVaultChecker(v),
		health.NewAuditChecker(auditLog),
		health.NewLearningChecker(store),
	)
	if cfg.NotificationChannel == "webhook" && cfg.NotificationEndpoint != "" {
		hb.Register(health.NewEndpointChecker("notify", cfg.NotificationEndpoint))
	}

	var scn *scanner.Scanner
	if cfg.CredentialScanEnabled {
		scn = scanner.New(auditLog)
	}

	loop := processor.NewLoop(cfg, v, proc, processor.Parts{
		Mover:          mover.New(v, auditLog),
		Scanner:        scn,
		Heartbeat:      hb,
		Dashboard:      dash,
		WatcherRunning: w.Running,
	})
	loop.Start()
	fmt.Println("✓ Orchestration loop started")

	collector := metrics.NewCollector(v, proc.Controller())
	collector.Start()

	errCh := make(chan error, 1)
	var srv *http.Server
	if cfg.MetricsListen != "" {
		srv = metricsServer(cfg.MetricsListen, errCh)
		fmt.Printf("✓ Metrics listening on %s\n", cfg.MetricsListen)
	}

	fmt.Println()
	fmt.Println("Orchestrator is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal or metrics server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}

	// Shutdown
	loop.Stop()
	w.Stop()
	collector.Stop()
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}

	fmt.Println("✓ Shutdown complete")
	return nil
}

// metricsServer serves the Prometheus and health endpoints in the
// background. Failures land on errCh.
func metricsServer(addr string, errCh chan<- error) *http.Server {
	metrics.SetVersion(Version)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server error: %v", err)
		}
	}()
	return srv
}
