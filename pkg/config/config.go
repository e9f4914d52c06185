package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all orchestrator settings. Values resolve in order:
// built-in defaults, then an optional YAML file, then environment
// variables (HUTCH_* keys), which always win.
type Config struct {
	// Paths
	VaultPath         string `yaml:"vault_path"`
	WatchDir          string `yaml:"watch_dir"`
	OperationsLogPath string `yaml:"operations_log_path"`

	// Loop cadence
	CheckIntervalSeconds int `yaml:"check_interval_seconds"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// Execution policy
	AutoExecuteSimple  bool `yaml:"auto_execute_simple"`
	AutoExecuteComplex bool `yaml:"auto_execute_complex"`

	// Classification
	CredentialScanEnabled   bool     `yaml:"credential_scan_enabled"`
	AllowedExternalServices []string `yaml:"allowed_external_services"`

	// SLA thresholds (minutes)
	SLASimpleMinutes  float64 `yaml:"sla_simple_minutes"`
	SLAComplexMinutes float64 `yaml:"sla_complex_minutes"`

	// Concurrency
	MaxParallelTasks   int     `yaml:"max_parallel_tasks"`
	TaskTimeoutMinutes float64 `yaml:"task_timeout_minutes"`

	// Intelligence
	PredictionThreshold  float64 `yaml:"prediction_threshold"`
	LearningWindowDays   int     `yaml:"learning_window_days"`
	MaxRecoveryAttempts  int     `yaml:"max_recovery_attempts"`
	RiskWeightSLA        float64 `yaml:"risk_weight_sla"`
	RiskWeightComplexity float64 `yaml:"risk_weight_complexity"`
	RiskWeightImpact     float64 `yaml:"risk_weight_impact"`
	RiskWeightFailure    float64 `yaml:"risk_weight_failure"`

	// Feature flags. Disabling degrades to foundation behavior:
	// no predictions, failures escalate directly, ingestion order.
	EnablePredictiveSLA bool `yaml:"enable_predictive_sla"`
	EnableSelfHealing   bool `yaml:"enable_self_healing"`
	EnableRiskScoring   bool `yaml:"enable_risk_scoring"`

	// Notifications
	NotificationChannel  string `yaml:"notification_channel"`
	NotificationEndpoint string `yaml:"notification_endpoint"`

	// Rollback
	RollbackRetentionDays int `yaml:"rollback_retention_days"`

	// Metrics endpoint address, empty disables the listener
	MetricsListen string `yaml:"metrics_listen"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		VaultPath:             "./hutch_vault",
		WatchDir:              "./inbox",
		OperationsLogPath:     "./operations.log",
		CheckIntervalSeconds:  30,
		LogLevel:              "info",
		LogJSON:               false,
		AutoExecuteSimple:     false,
		AutoExecuteComplex:    false,
		CredentialScanEnabled: true,
		SLASimpleMinutes:      2,
		SLAComplexMinutes:     10,
		MaxParallelTasks:      3,
		TaskTimeoutMinutes:    15,
		PredictionThreshold:   0.7,
		LearningWindowDays:    30,
		MaxRecoveryAttempts:   3,
		RiskWeightSLA:         0.3,
		RiskWeightComplexity:  0.2,
		RiskWeightImpact:      0.3,
		RiskWeightFailure:     0.2,
		EnablePredictiveSLA:   true,
		EnableSelfHealing:     true,
		EnableRiskScoring:     true,
		RollbackRetentionDays: 7,
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// a .env file in the working directory, and environment variables.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Populate process env from .env without overriding existing vars
	_ = godotenv.Load(".env")

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envStr("HUTCH_VAULT_PATH", &c.VaultPath)
	envStr("HUTCH_WATCH_DIR", &c.WatchDir)
	envStr("HUTCH_OPERATIONS_LOG_PATH", &c.OperationsLogPath)
	envInt("HUTCH_CHECK_INTERVAL_SECONDS", &c.CheckIntervalSeconds)
	envStr("HUTCH_LOG_LEVEL", &c.LogLevel)
	envBool("HUTCH_LOG_JSON", &c.LogJSON)
	envBool("HUTCH_AUTO_EXECUTE_SIMPLE", &c.AutoExecuteSimple)
	envBool("HUTCH_AUTO_EXECUTE_COMPLEX", &c.AutoExecuteComplex)
	envBool("HUTCH_CREDENTIAL_SCAN_ENABLED", &c.CredentialScanEnabled)
	envList("HUTCH_ALLOWED_EXTERNAL_SERVICES", &c.AllowedExternalServices)
	envFloat("HUTCH_SLA_SIMPLE_MINUTES", &c.SLASimpleMinutes)
	envFloat("HUTCH_SLA_COMPLEX_MINUTES", &c.SLAComplexMinutes)
	envInt("HUTCH_MAX_PARALLEL_TASKS", &c.MaxParallelTasks)
	envFloat("HUTCH_TASK_TIMEOUT_MINUTES", &c.TaskTimeoutMinutes)
	envFloat("HUTCH_PREDICTION_THRESHOLD", &c.PredictionThreshold)
	envInt("HUTCH_LEARNING_WINDOW_DAYS", &c.LearningWindowDays)
	envInt("HUTCH_MAX_RECOVERY_ATTEMPTS", &c.MaxRecoveryAttempts)
	envFloat("HUTCH_RISK_WEIGHT_SLA", &c.RiskWeightSLA)
	envFloat("HUTCH_RISK_WEIGHT_COMPLEXITY", &c.RiskWeightComplexity)
	envFloat("HUTCH_RISK_WEIGHT_IMPACT", &c.RiskWeightImpact)
	envFloat("HUTCH_RISK_WEIGHT_FAILURE", &c.RiskWeightFailure)
	envBool("HUTCH_ENABLE_PREDICTIVE_SLA", &c.EnablePredictiveSLA)
	envBool("HUTCH_ENABLE_SELF_HEALING", &c.EnableSelfHealing)
	envBool("HUTCH_ENABLE_RISK_SCORING", &c.EnableRiskScoring)
	envStr("HUTCH_NOTIFICATION_CHANNEL", &c.NotificationChannel)
	envStr("HUTCH_NOTIFICATION_ENDPOINT", &c.NotificationEndpoint)
	envInt("HUTCH_ROLLBACK_RETENTION_DAYS", &c.RollbackRetentionDays)
	envStr("HUTCH_METRICS_LISTEN", &c.MetricsListen)
}

// Validate checks that settings are internally consistent.
func (c *Config) Validate() error {
	if c.VaultPath == "" {
		return fmt.Errorf("vault_path must not be empty")
	}
	if c.MaxParallelTasks < 1 {
		return fmt.Errorf("max_parallel_tasks must be at least 1, got %d", c.MaxParallelTasks)
	}
	if c.TaskTimeoutMinutes <= 0 {
		return fmt.Errorf("task_timeout_minutes must be positive, got %v", c.TaskTimeoutMinutes)
	}
	if c.CheckIntervalSeconds < 1 {
		return fmt.Errorf("check_interval_seconds must be at least 1, got %d", c.CheckIntervalSeconds)
	}
	if c.PredictionThreshold < 0 || c.PredictionThreshold > 1 {
		return fmt.Errorf("prediction_threshold must be within [0,1], got %v", c.PredictionThreshold)
	}
	if c.LearningWindowDays < 0 {
		return fmt.Errorf("learning_window_days must not be negative, got %d", c.LearningWindowDays)
	}
	if c.MaxRecoveryAttempts < 1 {
		return fmt.Errorf("max_recovery_attempts must be at least 1, got %d", c.MaxRecoveryAttempts)
	}
	for name, w := range map[string]float64{
		"risk_weight_sla":        c.RiskWeightSLA,
		"risk_weight_complexity": c.RiskWeightComplexity,
		"risk_weight_impact":     c.RiskWeightImpact,
		"risk_weight_failure":    c.RiskWeightFailure,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, w)
		}
	}
	if c.SLASimpleMinutes <= 0 || c.SLAComplexMinutes <= 0 {
		return fmt.Errorf("sla thresholds must be positive")
	}
	if c.RollbackRetentionDays < 0 {
		return fmt.Errorf("rollback_retention_days must not be negative, got %d", c.RollbackRetentionDays)
	}
	return nil
}

func envStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "yes", "on":
			*dst = true
		case "0", "f", "false", "no", "off":
			*dst = false
		}
	}
}

func envList(key string, dst *[]string) {
	if v, ok := os.LookupEnv(key); ok {
		var items []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				items = append(items, p)
			}
		}
		*dst = items
	}
}
