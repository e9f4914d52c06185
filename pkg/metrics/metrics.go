package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Vault metrics
	TasksPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hutch_tasks_pending",
			Help: "Number of tasks waiting in Needs_Action",
		},
	)

	TasksInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hutch_tasks_in_progress",
			Help: "Number of tasks currently in In_Progress",
		},
	)

	TasksCompleted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hutch_tasks_completed",
			Help: "Number of tasks in Done",
		},
	)

	// Concurrency metrics
	ActiveSlots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hutch_concurrency_active_slots",
			Help: "Execution slots currently held",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hutch_concurrency_queue_depth",
			Help: "Tasks waiting for an execution slot",
		},
	)

	// Processing metrics
	TasksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_tasks_processed_total",
			Help: "Total tasks processed by outcome",
		},
		[]string{"outcome"},
	)

	StepsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_steps_executed_total",
			Help: "Total plan steps executed by outcome",
		},
		[]string{"outcome"},
	)

	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hutch_task_duration_seconds",
			Help:    "Task execution duration in seconds by complexity",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"complexity"},
	)

	// Intelligence metrics
	RecoveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_recovery_attempts_total",
			Help: "Self-healing attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	SLABreaches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hutch_sla_breaches_total",
			Help: "Total SLA breaches detected",
		},
	)

	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_predictions_total",
			Help: "SLA predictions by recommendation bucket",
		},
		[]string{"recommendation"},
	)

	AuditEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hutch_audit_entries_total",
			Help: "Audit log entries appended by operation",
		},
		[]string{"op"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(TasksPending)
	prometheus.MustRegister(TasksInProgress)
	prometheus.MustRegister(TasksCompleted)
	prometheus.MustRegister(ActiveSlots)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(TasksProcessed)
	prometheus.MustRegister(StepsExecuted)
	prometheus.MustRegister(TaskDuration)
	prometheus.MustRegister(RecoveryAttempts)
	prometheus.MustRegister(SLABreaches)
	prometheus.MustRegister(Predictions)
	prometheus.MustRegister(AuditEntries)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
