/*
Package log provides structured logging for Hutch using zerolog.

The log package wraps the zerolog library to provide JSON-structured
logging with component-specific loggers, configurable log levels, and
helper functions for common logging patterns. All logs include
timestamps and support filtering by severity level.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Thread-safe concurrent writes

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithTaskID: Add task ID context
  - WithStepID: Add step ID context
  - WithTaskFile: Add vault-relative task filename

Configuration:
  - Level: debug/info/warn/error threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer destination (stdout, file)

# Usage

	log.Init(log.Config{Level: log.InfoLevel})

	logger := log.WithComponent("classifier")
	logger.Info().Str("complexity", "simple").Msg("task classified")

Structured logging is operator telemetry only. The audit trail that
the system itself consumes is the separate append-only operations log
in pkg/audit; nothing in this package feeds decision-making.
*/
package log
