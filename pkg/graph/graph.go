package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// StepStatus represents the lifecycle state of a single step
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// Step is one node of an execution graph. Priority orders steps whose
// dependencies are equally satisfied; lower runs first.
type Step struct {
	ID                string     `json:"step_id"`
	Name              string     `json:"name"`
	Priority          int        `json:"priority"`
	Status            StepStatus `json:"status"`
	EstimatedDuration float64    `json:"estimated_duration,omitempty"`
	AlternativeStep   string     `json:"alternative_step,omitempty"`
}

// Graph is a task's dependency-ordered execution plan. Edges map a
// step to the steps that depend on it. The structure is fixed after
// construction; only step statuses advance.
type Graph struct {
	TaskID         string              `json:"task_id"`
	Steps          []*Step             `json:"steps"`
	Edges          map[string][]string `json:"edges"`
	ParallelGroups [][]string          `json:"parallelizable_groups"`
	CreatedAt      time.Time           `json:"created_at"`
	Version        int                 `json:"version"`
}

// SchemaVersion is the persisted graph format version.
const SchemaVersion = 1

var (
	ErrNoSteps     = errors.New("graph has no steps")
	ErrCycle       = errors.New("graph contains circular dependencies")
	ErrUnknownStep = errors.New("edge references unknown step")
)

// New builds a graph over steps with the given adjacency.
func New(taskID string, steps []*Step, edges map[string][]string) *Graph {
	if edges == nil {
		edges = make(map[string][]string)
	}
	return &Graph{
		TaskID:    taskID,
		Steps:     steps,
		Edges:     edges,
		CreatedAt: time.Now(),
		Version:   SchemaVersion,
	}
}

// Step returns the step with the given id, nil when absent.
func (g *Graph) Step(id string) *Step {
	for _, s := range g.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Validate checks structural invariants: at least one step, unique
// step ids, positive priorities, edges between known steps, and
// acyclicity.
func (g *Graph) Validate() error {
	if len(g.Steps) == 0 {
		return ErrNoSteps
	}

	ids := make(map[string]bool, len(g.Steps))
	for _, s := range g.Steps {
		if ids[s.ID] {
			return fmt.Errorf("duplicate step id %q", s.ID)
		}
		ids[s.ID] = true
		if s.Priority < 1 {
			return fmt.Errorf("step %q has priority %d, must be at least 1", s.ID, s.Priority)
		}
	}

	for src, dsts := range g.Edges {
		if !ids[src] {
			return fmt.Errorf("%w: %q", ErrUnknownStep, src)
		}
		for _, dst := range dsts {
			if !ids[dst] {
				return fmt.Errorf("%w: %q", ErrUnknownStep, dst)
			}
		}
	}

	if g.hasCycle() {
		return ErrCycle
	}
	return nil
}

// hasCycle runs Kahn's algorithm and reports whether any step was
// unreachable from the zero-indegree frontier.
func (g *Graph) hasCycle() bool {
	indegree := g.indegrees()

	var queue []string
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, dst := range g.Edges[id] {
			indegree[dst]--
			if indegree[dst] == 0 {
				queue = append(queue, dst)
			}
		}
	}
	return processed != len(g.Steps)
}

func (g *Graph) indegrees() map[string]int {
	indegree := make(map[string]int, len(g.Steps))
	for _, s := range g.Steps {
		indegree[s.ID] = 0
	}
	for _, dsts := range g.Edges {
		for _, dst := range dsts {
			indegree[dst]++
		}
	}
	return indegree
}

// ExecutionOrder returns the steps in dependency order. When several
// steps are simultaneously ready, the lowest priority value runs
// first, making the order deterministic for a given graph.
func (g *Graph) ExecutionOrder() ([]*Step, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	indegree := g.indegrees()
	var ready []*Step
	for _, s := range g.Steps {
		if indegree[s.ID] == 0 {
			ready = append(ready, s)
		}
	}

	order := make([]*Step, 0, len(g.Steps))
	for len(ready) > 0 {
		// Pick the ready step with the lowest priority value
		min := 0
		for i := 1; i < len(ready); i++ {
			if ready[i].Priority < ready[min].Priority {
				min = i
			}
		}
		next := ready[min]
		ready = append(ready[:min], ready[min+1:]...)
		order = append(order, next)

		for _, dst := range g.Edges[next.ID] {
			indegree[dst]--
			if indegree[dst] == 0 {
				ready = append(ready, g.Step(dst))
			}
		}
	}
	return order, nil
}

// Roots returns the ids of steps with no dependencies.
func (g *Graph) Roots() []string {
	indegree := g.indegrees()
	var roots []string
	for _, s := range g.Steps {
		if indegree[s.ID] == 0 {
			roots = append(roots, s.ID)
		}
	}
	return roots
}

// CompletedCount returns how many steps have finished successfully.
func (g *Graph) CompletedCount() int {
	n := 0
	for _, s := range g.Steps {
		if s.Status == StepCompleted {
			n++
		}
	}
	return n
}

// WriteFile persists the graph as JSON.
func (g *Graph) WriteFile(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	return nil
}

// LoadFile reads a persisted graph.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph: %w", err)
	}
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse graph: %w", err)
	}
	if g.Edges == nil {
		g.Edges = make(map[string][]string)
	}
	return &g, nil
}
