package types

import (
	"math"
	"time"
)

// Task represents a unit of work moving through the orchestrator.
// The canonical copy lives as a markdown file with YAML frontmatter
// inside the vault; this struct is the frontmatter.
type Task struct {
	ID          string     `yaml:"id"`
	Source      string     `yaml:"source"`
	Type        TaskType   `yaml:"type"`
	Created     time.Time  `yaml:"created"`
	OriginalRef string     `yaml:"original_ref,omitempty"`
	Status      TaskStatus `yaml:"status"`
	Version     int        `yaml:"version"`
	Priority    Priority   `yaml:"priority"`

	// Set by classification.
	Complexity   Complexity        `yaml:"complexity,omitempty"`
	ClassifiedAt time.Time         `yaml:"classified_at,omitempty"`
	GateResults  map[string]string `yaml:"gate_results,omitempty"`

	// Set by planning.
	PlanRef       string    `yaml:"plan_ref,omitempty"`
	PlanGenerated time.Time `yaml:"plan_generated,omitempty"`

	// Set by execution.
	RollbackRef string    `yaml:"rollback_ref,omitempty"`
	Updated     time.Time `yaml:"updated,omitempty"`
	CompletedAt time.Time `yaml:"completed_at,omitempty"`

	// Override bypasses classification gates when set by an operator.
	Override       bool   `yaml:"override,omitempty"`
	OverrideReason string `yaml:"override_reason,omitempty"`
}

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	StatusPending        TaskStatus = "pending"
	StatusInProgress     TaskStatus = "in_progress"
	StatusDone           TaskStatus = "done"
	StatusFailed         TaskStatus = "failed"
	StatusFailedRollback TaskStatus = "failed_rollback"
	StatusBlocked        TaskStatus = "blocked"
)

// Terminal reports whether the status ends the task's lifecycle.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusFailedRollback:
		return true
	}
	return false
}

// TaskType categorizes tasks for planning and learning
type TaskType string

const (
	TypeDocument TaskType = "document"
	TypeEmail    TaskType = "email"
	TypeData     TaskType = "data"
	TypeCode     TaskType = "code"
	TypeReport   TaskType = "report"
	TypeGeneral  TaskType = "general"
	TypeImage    TaskType = "image"
	TypeUnknown  TaskType = "unknown"
)

// Priority is the operator-assigned urgency of a task
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Value maps a priority to its ordering weight. Unknown priorities
// rank at the bottom.
func (p Priority) Value() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Complexity is the classifier's verdict on a task
type Complexity string

const (
	ComplexitySimple       Complexity = "simple"
	ComplexityComplex      Complexity = "complex"
	ComplexityManualReview Complexity = "manual_review"
	ComplexityUnknown      Complexity = "unknown"
)

// RiskScore holds the component and composite risk for one task at
// one scheduling decision. Scores are never persisted.
type RiskScore struct {
	TaskID      string
	SLARisk     float64
	Complexity  float64
	Impact      float64
	FailureRate float64
	Composite   float64
	ComputedAt  time.Time
}

// LearningRecord is one observed task outcome, appended to the
// learning store and replayable during maintenance.
type LearningRecord struct {
	Timestamp      time.Time `json:"ts"`
	TaskType       TaskType  `json:"task_type"`
	DurationMS     float64   `json:"duration_ms"`
	Outcome        string    `json:"outcome"`
	RetryCount     int       `json:"retry_count"`
	RetrySucceeded bool      `json:"retry_succeeded"`
	SLABreached    bool      `json:"sla_breached"`
}

// LearningMetrics aggregates outcomes per task type. Mean and
// variance are maintained online; variance is population variance.
type LearningMetrics struct {
	TaskType         TaskType  `json:"task_type"`
	TotalCount       int       `json:"total_count"`
	SuccessCount     int       `json:"success_count"`
	FailureCount     int       `json:"failure_count"`
	AvgDurationMS    float64   `json:"avg_duration_ms"`
	DurationVariance float64   `json:"duration_variance"`
	RetrySuccess     int       `json:"retry_success_count"`
	RetryTotal       int       `json:"retry_total_count"`
	SLABreachCount   int       `json:"sla_breach_count"`
	LastUpdated      time.Time `json:"last_updated"`
}

// FailureRate returns failures over total, 0 when empty.
func (m *LearningMetrics) FailureRate() float64 {
	if m.TotalCount == 0 {
		return 0
	}
	return float64(m.FailureCount) / float64(m.TotalCount)
}

// RetrySuccessRate returns retry successes over retried tasks, 0 when
// nothing was retried.
func (m *LearningMetrics) RetrySuccessRate() float64 {
	if m.RetryTotal == 0 {
		return 0
	}
	return float64(m.RetrySuccess) / float64(m.RetryTotal)
}

// SLAComplianceRate returns the fraction of tasks that met their SLA.
func (m *LearningMetrics) SLAComplianceRate() float64 {
	if m.TotalCount == 0 {
		return 1.0
	}
	return 1.0 - float64(m.SLABreachCount)/float64(m.TotalCount)
}

// DurationStdev returns the standard deviation of task duration in ms.
func (m *LearningMetrics) DurationStdev() float64 {
	if m.DurationVariance <= 0 {
		return 0
	}
	return math.Sqrt(m.DurationVariance)
}

// Recommendation buckets a breach probability for operators
type Recommendation string

const (
	RecommendOnTrack Recommendation = "on_track"
	RecommendMonitor Recommendation = "monitor"
	RecommendAtRisk  Recommendation = "at_risk"
)

// SLAPrediction is the output of a predictive deadline check for an
// in-flight task. Derived on demand, never persisted.
type SLAPrediction struct {
	TaskID            string
	TaskType          TaskType
	ElapsedMinutes    float64
	PredictedDuration float64
	ThresholdMinutes  float64
	Probability       float64
	Exceeds           bool
	Recommendation    Recommendation
	ComputedAt        time.Time
}

// RecoveryStrategy identifies a stage of the self-healing cascade
type RecoveryStrategy string

const (
	StrategyRetry       RecoveryStrategy = "retry"
	StrategyAlternative RecoveryStrategy = "alternative"
	StrategyPartial     RecoveryStrategy = "partial"
)

// RecoveryAttempt records one stage of the cascade for one failed step.
type RecoveryAttempt struct {
	TaskID        string
	StepID        string
	AttemptNumber int
	Strategy      RecoveryStrategy
	Outcome       string
	DurationMS    float64
	Timestamp     time.Time
	ErrorDetail   string
}

// Succeeded reports whether the attempt recovered the step.
func (a RecoveryAttempt) Succeeded() bool {
	return a.Outcome == "success"
}

// SlotStatus represents the lifecycle state of a concurrency slot
type SlotStatus string

const (
	SlotActive    SlotStatus = "active"
	SlotCompleted SlotStatus = "completed"
	SlotTimedOut  SlotStatus = "timed_out"
	SlotReleased  SlotStatus = "released"
)

// Slot is one admission to the bounded executor pool.
type Slot struct {
	ID        int
	TaskID    string
	StartedAt time.Time
	TimeoutAt time.Time
	Status    SlotStatus
}
