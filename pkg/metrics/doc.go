/*
Package metrics provides Prometheus metrics collection and exposition
for Hutch.

The metrics package defines and registers all Hutch metrics using the
Prometheus client library, providing observability into task flow,
execution slots, the self-healing cascade, and SLA behavior. Metrics
are exposed via an optional HTTP endpoint for scraping.

# Metric Categories

Vault gauges (sampled by the Collector):
  - hutch_tasks_pending: Files in Needs_Action
  - hutch_tasks_in_progress: Files in In_Progress
  - hutch_tasks_completed: Files in Done

Concurrency gauges (sampled by the Collector):
  - hutch_concurrency_active_slots: Slots currently held
  - hutch_concurrency_queue_depth: Tasks waiting for a slot

Processing counters (incremented by the orchestrator loop):
  - hutch_tasks_processed_total{outcome}
  - hutch_steps_executed_total{outcome}
  - hutch_task_duration_seconds{complexity} (histogram)

Intelligence counters:
  - hutch_recovery_attempts_total{strategy,outcome}
  - hutch_sla_breaches_total
  - hutch_predictions_total{recommendation}
  - hutch_audit_entries_total{op}

# Usage

All metrics register on the default registry at package init. Expose
them when metrics_listen is configured:

	http.Handle("/metrics", metrics.Handler())
	http.HandleFunc("/health", metrics.HealthHandler())
	http.HandleFunc("/ready", metrics.ReadyHandler())

Sampling gauges on the 15s cadence:

	collector := metrics.NewCollector(vault, controller)
	collector.Start()
	defer collector.Stop()

Timing an execution:

	timer := metrics.NewTimer()
	result := exec.Execute(name, steps)
	timer.ObserveDurationVec(metrics.TaskDuration, string(complexity))

# Health Endpoints

The package also tracks per-component health for the HTTP server's
/health, /ready and /live endpoints. Components register with
RegisterComponent; readiness requires the critical set (vault, audit)
registered and healthy. This is the HTTP view only; the loop's
heartbeat checks live in pkg/health.
*/
package metrics
