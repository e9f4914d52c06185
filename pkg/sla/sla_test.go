package sla

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/types"
)

func newPredictor(t *testing.T) (*Predictor, *audit.Log) {
	t.Helper()
	auditLog := audit.NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	return NewPredictor(0.7, auditLog), auditLog
}

func TestPredictPastDeadline(t *testing.T) {
	p, _ := newPredictor(t)

	pred := p.Predict("task-1", types.TypeDocument, 12.0, 10.0, nil)

	assert.Equal(t, 1.0, pred.Probability)
	assert.Equal(t, 12.0, pred.PredictedDuration)
	assert.Equal(t, types.RecommendAtRisk, pred.Recommendation)
	assert.True(t, pred.Exceeds)
}

func TestPredictColdStart(t *testing.T) {
	p, _ := newPredictor(t)

	pred := p.Predict("task-1", types.TypeEmail, 2.0, 10.0, nil)

	assert.InDelta(t, 0.2, pred.Probability, 1e-9)
	assert.Equal(t, 10.0, pred.PredictedDuration)
	assert.Equal(t, types.RecommendOnTrack, pred.Recommendation)
	assert.False(t, pred.Exceeds)
}

func TestPredictColdStartIgnoresThinHistory(t *testing.T) {
	p, _ := newPredictor(t)
	hist := &types.LearningMetrics{TotalCount: 2, AvgDurationMS: 600000}

	pred := p.Predict("task-1", types.TypeEmail, 5.0, 10.0, hist)

	assert.InDelta(t, 0.5, pred.Probability, 1e-9)
	assert.Equal(t, types.RecommendMonitor, pred.Recommendation)
}

func TestPredictFromDistribution(t *testing.T) {
	p, _ := newPredictor(t)

	// mean 8min, stdev 1min, 7min elapsed of a 10min deadline. The
	// headroom is three standard deviations, so the tail is small but
	// nonzero.
	hist := &types.LearningMetrics{
		TotalCount:       10,
		AvgDurationMS:    480000,
		DurationVariance: 3.6e9,
	}
	pred := p.Predict("task-1", types.TypeData, 7.0, 10.0, hist)

	assert.Greater(t, pred.Probability, 0.0)
	assert.Less(t, pred.Probability, 0.01)
	assert.InDelta(t, 8.0, pred.PredictedDuration, 1e-9)
	assert.Equal(t, types.RecommendOnTrack, pred.Recommendation)
	assert.False(t, pred.Exceeds)
}

func TestPredictTightHeadroomFlags(t *testing.T) {
	p, auditLog := newPredictor(t)

	// One standard deviation of headroom left after the mean is
	// already past the deadline territory.
	hist := &types.LearningMetrics{
		TotalCount:       10,
		AvgDurationMS:    480000,
		DurationVariance: 3.6e9,
	}
	pred := p.Predict("task-1", types.TypeData, 9.5, 10.0, hist)

	assert.Greater(t, pred.Probability, 0.3)
	assert.Equal(t, types.RecommendMonitor, pred.Recommendation)

	entries := auditLog.Filter(audit.OpSLAPrediction, time.Time{})
	require.Len(t, entries, 1)
	assert.Equal(t, audit.OutcomeSuccess, entries[0].Outcome)
}

func TestPredictZeroVariance(t *testing.T) {
	p, _ := newPredictor(t)

	under := &types.LearningMetrics{TotalCount: 5, AvgDurationMS: 300000}
	over := &types.LearningMetrics{TotalCount: 5, AvgDurationMS: 900000}

	assert.Equal(t, 0.0, p.Predict("t", types.TypeCode, 1.0, 10.0, under).Probability)
	assert.Equal(t, 1.0, p.Predict("t", types.TypeCode, 1.0, 10.0, over).Probability)
}

func TestPredictAuditEntry(t *testing.T) {
	p, auditLog := newPredictor(t)

	hist := &types.LearningMetrics{TotalCount: 5, AvgDurationMS: 900000}
	pred := p.Predict("20260301-100000-load.md", types.TypeData, 1.0, 10.0, hist)
	require.True(t, pred.Exceeds)

	entries := auditLog.Filter(audit.OpSLAPrediction, time.Time{})
	require.Len(t, entries, 1)
	assert.Equal(t, "20260301-100000-load.md", entries[0].File)
	assert.Equal(t, "sla_predictor", entries[0].Src)
	assert.Equal(t, audit.OutcomeFlagged, entries[0].Outcome)
	assert.Contains(t, entries[0].Detail, "probability=1.000")
	assert.Contains(t, entries[0].Detail, "recommendation=at_risk")
	assert.Contains(t, entries[0].Detail, "task_type=data")
	assert.Contains(t, entries[0].Detail, "elapsed=1.0min")
	assert.Contains(t, entries[0].Detail, "threshold=10.0min")
}

func TestBuckets(t *testing.T) {
	tests := []struct {
		p    float64
		want types.Recommendation
	}{
		{0.0, types.RecommendOnTrack},
		{0.29, types.RecommendOnTrack},
		{0.3, types.RecommendMonitor},
		{0.7, types.RecommendMonitor},
		{0.71, types.RecommendAtRisk},
		{1.0, types.RecommendAtRisk},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bucket(tt.p), "p=%v", tt.p)
	}
}

func newTracker(t *testing.T) (*Tracker, *audit.Log) {
	t.Helper()
	auditLog := audit.NewLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	return NewTracker(2, 10, auditLog), auditLog
}

func TestTrackerBreach(t *testing.T) {
	tracker, auditLog := newTracker(t)

	classified := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	task := &types.Task{
		Complexity:   types.ComplexitySimple,
		ClassifiedAt: classified,
		CompletedAt:  classified.Add(5 * time.Minute),
	}
	assert.True(t, tracker.CheckTask("20260301-100000-memo.md", task))

	entries := auditLog.Filter(audit.OpSLABreach, time.Time{})
	require.Len(t, entries, 1)
	assert.Equal(t, "20260301-100000-memo.md", entries[0].File)
	assert.Equal(t, "sla_tracker", entries[0].Src)
	assert.Equal(t, audit.OutcomeFlagged, entries[0].Outcome)
	assert.Equal(t, "duration:5.0min threshold:2min complexity:simple", entries[0].Detail)
}

func TestTrackerWithinDeadline(t *testing.T) {
	tracker, auditLog := newTracker(t)

	classified := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	task := &types.Task{
		Complexity:   types.ComplexityComplex,
		ClassifiedAt: classified,
		CompletedAt:  classified.Add(5 * time.Minute),
	}
	assert.False(t, tracker.CheckTask("task.md", task))
	assert.Empty(t, auditLog.Filter(audit.OpSLABreach, time.Time{}))
}

func TestTrackerSkipsIncompleteTimestamps(t *testing.T) {
	tracker, _ := newTracker(t)

	assert.False(t, tracker.CheckTask("task.md", nil))
	assert.False(t, tracker.CheckTask("task.md", &types.Task{CompletedAt: time.Now()}))
	assert.False(t, tracker.CheckTask("task.md", &types.Task{ClassifiedAt: time.Now()}))
}

func TestTrackerThresholdByComplexity(t *testing.T) {
	tracker, _ := newTracker(t)

	assert.Equal(t, 2.0, tracker.Threshold(types.ComplexitySimple))
	assert.Equal(t, 10.0, tracker.Threshold(types.ComplexityComplex))
	assert.Equal(t, 10.0, tracker.Threshold(types.ComplexityManualReview))
	assert.Equal(t, 10.0, tracker.Threshold(types.ComplexityUnknown))
}

func TestCompliance(t *testing.T) {
	tracker, auditLog := newTracker(t)

	// No executions at all counts as fully compliant.
	assert.Equal(t, 1.0, tracker.Compliance(time.Time{}))

	for i := 0; i < 4; i++ {
		auditLog.Append(audit.OpTaskExecuted, "t.md", "In_Progress", "Done", audit.OutcomeSuccess, "")
	}
	auditLog.Append(audit.OpTaskExecuted, "bad.md", "In_Progress", "", audit.OutcomeFailed, "")
	auditLog.Append(audit.OpSLABreach, "t.md", "sla_tracker", "", audit.OutcomeFlagged, "")

	// One breach against four successful executions.
	assert.InDelta(t, 0.75, tracker.Compliance(time.Time{}), 1e-9)
}
