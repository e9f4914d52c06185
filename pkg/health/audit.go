package health

import (
	"fmt"
	"os"

	"github.com/cuemby/hutch/pkg/audit"
)

// AuditChecker verifies the audit log file can still be appended to.
// Every state change in the system goes through that file, so losing
// it silently would be worse than stopping.
type AuditChecker struct {
	log *audit.Log
}

// NewAuditChecker creates a checker for the given audit log.
func NewAuditChecker(l *audit.Log) *AuditChecker {
	return &AuditChecker{log: l}
}

// Name returns the subsystem name.
func (c *AuditChecker) Name() string {
	return "audit"
}

// Check opens the log file for append and closes it again.
func (c *AuditChecker) Check() error {
	f, err := os.OpenFile(c.log.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("audit log not writable: %w", err)
	}
	return f.Close()
}
