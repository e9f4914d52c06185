package health

import (
	"fmt"
	"time"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/metrics"
)

// Result represents the outcome of a single health check
type Result struct {
	Name      string
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Name identifies the subsystem being checked
	Name() string

	// Check returns nil when the subsystem is healthy
	Check() error
}

// Status tracks the rolling health of a single subsystem
type Status struct {
	// ConsecutiveFailures tracks the number of consecutive failed checks
	ConsecutiveFailures int

	// ConsecutiveSuccesses tracks the number of consecutive successful checks
	ConsecutiveSuccesses int

	// LastCheck is the timestamp of the last health check
	LastCheck time.Time

	// LastResult is the result of the last health check
	LastResult Result

	// Healthy indicates if the subsystem is currently considered healthy
	Healthy bool

	// StartedAt is when health monitoring started for this subsystem
	StartedAt time.Time
}

// NewStatus creates a new Status with default values
func NewStatus() *Status {
	return &Status{
		Healthy:   true, // Assume healthy until proven otherwise
		StartedAt: time.Now(),
	}
}

// Update updates the status based on a new health check result
func (s *Status) Update(result Result, retries int) {
	s.LastCheck = result.CheckedAt
	s.LastResult = result

	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0

		// Mark as healthy after first success
		s.Healthy = true
	} else {
		s.ConsecutiveFailures++
		s.ConsecutiveSuccesses = 0

		// Mark as unhealthy after reaching retry threshold
		if s.ConsecutiveFailures >= retries {
			s.Healthy = false
		}
	}
}

// Heartbeat runs a set of checkers once per loop cycle and keeps a
// damped status per subsystem. A subsystem flips to unhealthy only
// after failing the configured number of consecutive checks, so a
// single slow disk read does not page anyone.
type Heartbeat struct {
	checkers []Checker
	statuses map[string]*Status
	retries  int
	auditLog *audit.Log
}

// NewHeartbeat creates a heartbeat over the given checkers. The audit
// log may be nil, in which case failures are only logged.
func NewHeartbeat(auditLog *audit.Log, retries int, checkers ...Checker) *Heartbeat {
	if retries <= 0 {
		retries = 1
	}
	hb := &Heartbeat{
		checkers: make([]Checker, 0, len(checkers)),
		statuses: make(map[string]*Status),
		retries:  retries,
		auditLog: auditLog,
	}
	for _, c := range checkers {
		hb.Register(c)
	}
	return hb
}

// Register adds a checker to the heartbeat cycle.
func (h *Heartbeat) Register(c Checker) {
	h.checkers = append(h.checkers, c)
	h.statuses[c.Name()] = NewStatus()
	metrics.RegisterComponent(c.Name(), true, "not checked yet")
}

// Run executes every checker once and returns the results in
// registration order. Each failure is appended to the audit log as a
// heartbeat_fail entry so the dashboard's alert table picks it up.
func (h *Heartbeat) Run() []Result {
	results := make([]Result, 0, len(h.checkers))
	for _, c := range h.checkers {
		start := time.Now()
		err := c.Check()
		result := Result{
			Name:      c.Name(),
			Healthy:   err == nil,
			CheckedAt: start,
			Duration:  time.Since(start),
		}
		if err != nil {
			result.Message = err.Error()
		} else {
			result.Message = "ok"
		}

		status, ok := h.statuses[c.Name()]
		if !ok {
			status = NewStatus()
			h.statuses[c.Name()] = status
		}
		status.Update(result, h.retries)
		metrics.UpdateComponent(c.Name(), result.Healthy, result.Message)

		if err != nil {
			logger := log.WithComponent("health")
			logger.Warn().
				Str("check", c.Name()).
				Err(err).
				Msg("Health check failed")
			if h.auditLog != nil {
				h.auditLog.Append(audit.OpHeartbeatFail, "system", "cmd_loop", "",
					audit.OutcomeFailed, fmt.Sprintf("%s: %v", c.Name(), err))
			}
		}

		results = append(results, result)
	}
	return results
}

// Healthy reports whether every subsystem is healthy after damping.
func (h *Heartbeat) Healthy() bool {
	for _, status := range h.statuses {
		if !status.Healthy {
			return false
		}
	}
	return true
}

// StatusOf returns the damped status for one subsystem, or nil if the
// subsystem is not registered.
func (h *Heartbeat) StatusOf(name string) *Status {
	return h.statuses[name]
}
