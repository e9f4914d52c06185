package health

import "fmt"

// Pinger is the slice of the learning store a health check needs.
type Pinger interface {
	Ping() error
}

// LearningChecker verifies the learning database is still readable.
type LearningChecker struct {
	store Pinger
}

// NewLearningChecker creates a checker over the given store.
func NewLearningChecker(store Pinger) *LearningChecker {
	return &LearningChecker{store: store}
}

// Name returns the subsystem name.
func (c *LearningChecker) Name() string {
	return "learning"
}

// Check opens a read transaction against the store.
func (c *LearningChecker) Check() error {
	if c.store == nil {
		return fmt.Errorf("learning store not configured")
	}
	if err := c.store.Ping(); err != nil {
		return fmt.Errorf("learning store unreachable: %w", err)
	}
	return nil
}
