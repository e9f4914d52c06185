package risk

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
)

// Component scores for classifier verdicts. Unlisted verdicts score
// as simple.
var complexityScores = map[types.Complexity]float64{
	types.ComplexitySimple:       0.33,
	types.ComplexityComplex:      0.67,
	types.ComplexityManualReview: 1.0,
}

// Component scores for priorities. Unlisted priorities score as normal.
var impactScores = map[types.Priority]float64{
	types.PriorityLow:      0.25,
	types.PriorityNormal:   0.50,
	types.PriorityHigh:     0.75,
	types.PriorityCritical: 1.0,
}

// Weights are the composite blend factors.
type Weights struct {
	SLA        float64
	Complexity float64
	Impact     float64
	Failure    float64
}

// DefaultWeights returns the standard blend.
func DefaultWeights() Weights {
	return Weights{SLA: 0.3, Complexity: 0.2, Impact: 0.3, Failure: 0.2}
}

// Meta carries the task metadata a score is computed from.
type Meta struct {
	Complexity types.Complexity
	Priority   types.Priority
	SLARisk    float64
}

// Candidate pairs a task with its scoring inputs for reordering.
type Candidate struct {
	TaskID string
	Meta   Meta
	Hist   *types.LearningMetrics
}

// Scorer computes composite risk scores and reorders execution queues.
type Scorer struct {
	weights  Weights
	auditLog *audit.Log
	now      func() time.Time
}

// New creates a scorer with the given weights.
func New(weights Weights, auditLog *audit.Log) *Scorer {
	return &Scorer{weights: weights, auditLog: auditLog, now: time.Now}
}

// Score computes the composite risk for one task. Component inputs
// outside [0,1] are a validation error; missing history contributes a
// zero failure component.
func (s *Scorer) Score(taskID string, meta Meta, hist *types.LearningMetrics) (types.RiskScore, error) {
	if meta.SLARisk < 0 || meta.SLARisk > 1 {
		return types.RiskScore{}, fmt.Errorf("sla risk %v outside [0,1] for task %s", meta.SLARisk, taskID)
	}

	complexity, ok := complexityScores[meta.Complexity]
	if !ok {
		complexity = complexityScores[types.ComplexitySimple]
	}
	impact, ok := impactScores[meta.Priority]
	if !ok {
		impact = impactScores[types.PriorityNormal]
	}
	failure := 0.0
	if hist != nil {
		failure = hist.FailureRate()
	}
	if failure < 0 || failure > 1 {
		return types.RiskScore{}, fmt.Errorf("failure rate %v outside [0,1] for task %s", failure, taskID)
	}

	composite := clamp(s.weights.SLA*meta.SLARisk +
		s.weights.Complexity*complexity +
		s.weights.Impact*impact +
		s.weights.Failure*failure)

	score := types.RiskScore{
		TaskID:      taskID,
		SLARisk:     meta.SLARisk,
		Complexity:  complexity,
		Impact:      impact,
		FailureRate: failure,
		Composite:   composite,
		ComputedAt:  s.now(),
	}

	s.auditLog.Append(audit.OpRiskScored, taskID, "risk_engine", "", audit.OutcomeSuccess,
		fmt.Sprintf("sla=%.2f complexity=%.2f impact=%.2f failure=%.2f composite=%.3f",
			score.SLARisk, score.Complexity, score.Impact, score.FailureRate, score.Composite))
	return score, nil
}

// Reorder scores every candidate and returns them sorted by composite
// risk, highest first. Candidates that fail scoring fall back to a
// zero-composite score so one bad task never blocks the queue; equal
// composites keep their input order.
func (s *Scorer) Reorder(candidates []Candidate) []types.RiskScore {
	scores := make([]types.RiskScore, 0, len(candidates))
	for _, c := range candidates {
		score, err := s.Score(c.TaskID, c.Meta, c.Hist)
		if err != nil {
			logger := log.WithComponent("risk")
			logger.Warn().
				Err(err).
				Str("task_id", c.TaskID).
				Msg("scoring failed, using fallback")
			score = types.RiskScore{
				TaskID:     c.TaskID,
				Complexity: complexityScores[types.ComplexitySimple],
				Impact:     impactScores[types.PriorityNormal],
				ComputedAt: s.now(),
			}
		}
		scores = append(scores, score)
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Composite > scores[j].Composite
	})

	if len(scores) > 0 {
		head := scores
		if len(head) > 5 {
			head = head[:5]
		}
		ids := make([]string, len(head))
		for i, sc := range head {
			ids[i] = sc.TaskID
		}
		s.auditLog.Append(audit.OpPriorityAdjusted, scores[0].TaskID, "risk_engine", "",
			audit.OutcomeSuccess,
			fmt.Sprintf("execution_order=%s total=%d", strings.Join(ids, ","), len(scores)))
	}
	return scores
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
