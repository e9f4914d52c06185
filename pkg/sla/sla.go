package sla

import (
	"fmt"
	"math"
	"time"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/types"
)

// minSamples is the history size below which the predictor falls back
// to linear extrapolation.
const minSamples = 3

// Predictor estimates the probability that an in-flight task will
// exceed its deadline, using the learned duration distribution for
// its type when enough samples exist.
type Predictor struct {
	threshold float64
	auditLog  *audit.Log
	now       func() time.Time
}

// NewPredictor creates a predictor that flags probabilities above
// threshold.
func NewPredictor(threshold float64, auditLog *audit.Log) *Predictor {
	return &Predictor{threshold: threshold, auditLog: auditLog, now: time.Now}
}

// Predict computes the breach probability for a task that has been
// running for elapsedMin against a deadline of slaMin minutes.
//
// Already past the deadline is a certainty. With at least three
// observed durations the learned distribution is treated as normal and
// the remaining headroom is converted to a tail probability; a
// degenerate distribution (zero variance) answers 0 or 1 outright.
// Without history the ratio of elapsed time to deadline stands in.
func (p *Predictor) Predict(taskID string, taskType types.TaskType, elapsedMin, slaMin float64, hist *types.LearningMetrics) types.SLAPrediction {
	pred := types.SLAPrediction{
		TaskID:           taskID,
		TaskType:         taskType,
		ElapsedMinutes:   elapsedMin,
		ThresholdMinutes: slaMin,
		ComputedAt:       p.now(),
	}

	switch {
	case elapsedMin >= slaMin:
		pred.Probability = 1.0
		pred.PredictedDuration = elapsedMin
	case hist != nil && hist.TotalCount >= minSamples:
		meanMin := hist.AvgDurationMS / 60000.0
		stdevMin := hist.DurationStdev() / 60000.0
		pred.PredictedDuration = meanMin
		if stdevMin == 0 {
			if meanMin >= slaMin {
				pred.Probability = 1.0
			}
		} else {
			z := (slaMin - elapsedMin) / stdevMin
			pred.Probability = clamp(1.0 - normalCDF(z))
		}
	default:
		pred.Probability = clamp(elapsedMin / slaMin)
		pred.PredictedDuration = slaMin
	}

	pred.Recommendation = bucket(pred.Probability)
	pred.Exceeds = pred.Probability > p.threshold

	outcome := audit.OutcomeSuccess
	if pred.Exceeds {
		outcome = audit.OutcomeFlagged
	}
	p.auditLog.Append(audit.OpSLAPrediction, taskID, "sla_predictor", "", outcome,
		fmt.Sprintf("probability=%.3f recommendation=%s task_type=%s elapsed=%.1fmin threshold=%.1fmin",
			pred.Probability, pred.Recommendation, taskType, elapsedMin, slaMin))
	return pred
}

func bucket(p float64) types.Recommendation {
	switch {
	case p < 0.3:
		return types.RecommendOnTrack
	case p <= 0.7:
		return types.RecommendMonitor
	}
	return types.RecommendAtRisk
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Tracker runs the retrospective deadline check on finished tasks and
// reports breaches to the audit trail.
type Tracker struct {
	simpleMin  float64
	complexMin float64
	auditLog   *audit.Log
}

// NewTracker creates a tracker with per-complexity deadlines in
// minutes.
func NewTracker(simpleMin, complexMin float64, auditLog *audit.Log) *Tracker {
	return &Tracker{simpleMin: simpleMin, complexMin: complexMin, auditLog: auditLog}
}

// Threshold returns the deadline in minutes for a complexity class.
// Anything not classified simple gets the complex deadline.
func (t *Tracker) Threshold(c types.Complexity) float64 {
	if c == types.ComplexitySimple {
		return t.simpleMin
	}
	return t.complexMin
}

// CheckTask compares the classification-to-completion span of a
// finished task against its deadline, emitting an sla_breach entry on
// overrun. Tasks missing either timestamp are skipped.
func (t *Tracker) CheckTask(name string, task *types.Task) bool {
	if task == nil || task.ClassifiedAt.IsZero() || task.CompletedAt.IsZero() {
		return false
	}
	durationMin := task.CompletedAt.Sub(task.ClassifiedAt).Minutes()
	threshold := t.Threshold(task.Complexity)
	if durationMin <= threshold {
		return false
	}
	t.auditLog.Append(audit.OpSLABreach, name, "sla_tracker", "", audit.OutcomeFlagged,
		fmt.Sprintf("duration:%.1fmin threshold:%vmin complexity:%s",
			durationMin, threshold, task.Complexity))
	return true
}

// Compliance returns the fraction of executed tasks since the given
// time that finished inside their deadline. No executions count as
// full compliance.
func (t *Tracker) Compliance(since time.Time) float64 {
	executed := 0
	for _, e := range t.auditLog.Filter(audit.OpTaskExecuted, since) {
		if e.Outcome == audit.OutcomeSuccess {
			executed++
		}
	}
	if executed == 0 {
		return 1.0
	}
	breaches := len(t.auditLog.Filter(audit.OpSLABreach, since))
	return clamp(1.0 - float64(breaches)/float64(executed))
}
