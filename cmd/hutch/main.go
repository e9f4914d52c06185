package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/config"
	"github.com/cuemby/hutch/pkg/learning"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/notify"
	"github.com/cuemby/hutch/pkg/processor"
	"github.com/cuemby/hutch/pkg/scanner"
	"github.com/cuemby/hutch/pkg/vault"
	"github.com/cuemby/hutch/pkg/watcher"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hutch",
	Short: "Hutch - Autonomous task orchestrator over a markdown vault",
	Long: `Hutch turns files dropped into an inbox folder into task notes
inside a markdown vault, then drives each task through planning,
classification, risk-ordered scheduling, allow-listed execution,
self-healing recovery, and rollback.

Every decision is appended to an operations log that doubles as the
corpus for SLA prediction and failure-rate learning.`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Hutch version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags
	rootCmd.PersistentFlags().String("vault", "", "Vault directory (overrides config)")
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the configuration for one command invocation and
// initializes logging from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if vaultPath, _ := cmd.Flags().GetString("vault"); vaultPath != "" {
		cfg.VaultPath = vaultPath
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.LogLevel = string(log.DebugLevel)
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	return cfg, nil
}

// openVault returns the vault after checking its structure exists.
func openVault(cfg *config.Config) (*vault.Vault, error) {
	v := vault.New(cfg.VaultPath)
	if issues := v.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("vault at %s is not ready (run 'hutch init'): %s",
			cfg.VaultPath, strings.Join(issues, ", "))
	}
	return v, nil
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the vault folder structure",
	Long: `Create the vault folder tree (Needs_Action, In_Progress, Done, Plans,
Rollback_Archive, Learning_Data) plus the dashboard and handbook seed
files, and the inbox watch directory. Existing content is left
untouched, so init is safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if path, _ := cmd.Flags().GetString("path"); path != "" {
			cfg.VaultPath = path
		}

		v := vault.New(cfg.VaultPath)
		if err := v.Init(); err != nil {
			return fmt.Errorf("failed to initialize vault: %v", err)
		}
		if err := os.MkdirAll(cfg.WatchDir, 0755); err != nil {
			return fmt.Errorf("failed to create watch directory: %v", err)
		}

		fmt.Printf("✓ Vault initialized: %s\n", v.Root())
		fmt.Printf("✓ Watch directory ready: %s\n", cfg.WatchDir)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the inbox and create tasks from new files",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
			cfg.WatchDir = dir
		}
		v, err := openVault(cfg)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.WatchDir, 0755); err != nil {
			return fmt.Errorf("failed to create watch directory: %v", err)
		}

		auditLog := audit.NewLog(cfg.OperationsLogPath)
		w, err := watcher.New(v, cfg.WatchDir, auditLog, nil)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %v", err)
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("failed to start watcher: %v", err)
		}

		fmt.Printf("Watching %s. Press Ctrl+C to stop.\n", cfg.WatchDir)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		w.Stop()
		fmt.Println("✓ Watcher stopped")
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import existing files from a directory as tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = cfg.WatchDir
		}
		v, err := openVault(cfg)
		if err != nil {
			return err
		}

		auditLog := audit.NewLog(cfg.OperationsLogPath)
		w, err := watcher.New(v, cfg.WatchDir, auditLog, nil)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %v", err)
		}

		fmt.Printf("Importing from %s...\n", dir)
		n, err := w.Import(dir)
		if err != nil {
			return fmt.Errorf("import failed: %v", err)
		}

		fmt.Printf("✓ Imported %d file(s)\n", n)
		return nil
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one planning and classification pass over pending tasks",
	Long: `Plan and classify every task waiting in Needs_Action, then execute
the ones the auto-execution policy admits. The command returns once
all admitted work has finished.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		v, err := openVault(cfg)
		if err != nil {
			return err
		}

		auditLog := audit.NewLog(cfg.OperationsLogPath)
		store, err := learning.NewBoltStore(v.Dir(vault.FolderLearningData), cfg.LearningWindowDays, auditLog)
		if err != nil {
			return fmt.Errorf("failed to open learning store: %v", err)
		}
		defer store.Close()

		notifier := notify.FromConfig(cfg.NotificationChannel, cfg.NotificationEndpoint, auditLog)
		proc := processor.New(v, cfg, auditLog, store, notifier, nil)

		ctx := context.Background()
		n := proc.ProcessAllPending(ctx)
		proc.Wait()
		for proc.DrainQueue(ctx) > 0 {
			proc.Wait()
		}

		fmt.Printf("✓ Processed %d task(s)\n", n)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault structure and task counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		v := vault.New(cfg.VaultPath)

		if issues := v.Validate(); len(issues) > 0 {
			fmt.Printf("Vault %s has problems:\n", v.Root())
			for _, issue := range issues {
				fmt.Printf("  ✗ %s\n", issue)
			}
			return nil
		}

		fmt.Printf("✓ Vault structure valid: %s\n", v.Root())
		for _, folder := range []string{
			vault.FolderNeedsAction,
			vault.FolderInProgress,
			vault.FolderDone,
			vault.FolderPlans,
		} {
			names, err := v.List(folder)
			if err != nil {
				continue
			}
			fmt.Printf("  %-13s %d\n", folder, len(names))
		}
		return nil
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan vault notes for credential patterns",
	Long: `Sweep the workflow folders for credential-looking content. Matches
are printed masked and recorded in the operations log. The command
exits non-zero when anything is found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		v, err := openVault(cfg)
		if err != nil {
			return err
		}

		auditLog := audit.NewLog(cfg.OperationsLogPath)
		findings := scanner.New(auditLog).ScanVault(v)
		if len(findings) == 0 {
			fmt.Println("✓ No credential patterns found")
			return nil
		}

		for _, f := range findings {
			fmt.Printf("  ✗ %s:%d %s %s\n", f.File, f.Line, f.Pattern, f.Match)
		}
		return fmt.Errorf("%d credential finding(s)", len(findings))
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Hutch version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

func init() {
	initCmd.Flags().String("path", "", "Vault directory to create (overrides config)")
	watchCmd.Flags().String("dir", "", "Directory to watch (overrides config)")
	importCmd.Flags().String("dir", "", "Directory to import from (defaults to the watch directory)")
}
