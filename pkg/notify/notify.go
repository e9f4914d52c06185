// Package notify delivers task status transitions to the outside
// world. Delivery is fire-and-forget: a failed send is audited and
// reported as false, never as an error that could stall processing.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/hutch/pkg/audit"
	"github.com/cuemby/hutch/pkg/log"
	"github.com/cuemby/hutch/pkg/types"
)

const (
	SeverityInfo     = "info"
	SeverityCritical = "critical"
)

// Event is one status transition to announce.
type Event struct {
	TaskName  string
	OldStatus string
	NewStatus string
	Timestamp time.Time
	Severity  string
}

// SeverityFor maps a task's new status to an alert severity. Failure
// statuses page, everything else informs.
func SeverityFor(status types.TaskStatus) string {
	switch status {
	case types.StatusFailed, types.StatusFailedRollback:
		return SeverityCritical
	}
	return SeverityInfo
}

// Notifier sends one event and reports whether delivery worked.
type Notifier interface {
	Send(e Event) bool
}

// NoOp is the notifier used when no channel is configured.
type NoOp struct{}

func (NoOp) Send(Event) bool { return true }

// Webhook POSTs events as JSON to a configured endpoint.
type Webhook struct {
	endpoint string
	client   *http.Client
	auditLog *audit.Log
}

// NewWebhook creates a webhook notifier with a 5 second timeout.
// auditLog may be nil to skip the audit trail.
func NewWebhook(endpoint string, auditLog *audit.Log) *Webhook {
	return &Webhook{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
		auditLog: auditLog,
	}
}

// FromConfig selects the notifier for the configured channel. Anything
// other than a webhook channel with an endpoint gets the no-op.
func FromConfig(channel, endpoint string, auditLog *audit.Log) Notifier {
	if channel == "webhook" && endpoint != "" {
		return NewWebhook(endpoint, auditLog)
	}
	return NoOp{}
}

type payload struct {
	EventID   string `json:"event_id"`
	TaskName  string `json:"task_name"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Timestamp string `json:"timestamp"`
	Severity  string `json:"severity"`
}

// Send posts the event. Connection errors and non-2xx responses are
// audited as notification_failed and reported as false.
func (w *Webhook) Send(e Event) bool {
	p := payload{
		EventID:   uuid.NewString(),
		TaskName:  e.TaskName,
		OldStatus: e.OldStatus,
		NewStatus: e.NewStatus,
		Severity:  e.Severity,
	}
	if p.TaskName == "" {
		p.TaskName = "unknown"
	}
	if p.Severity == "" {
		p.Severity = SeverityInfo
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	p.Timestamp = ts.Format(time.RFC3339)

	if err := w.post(p); err != nil {
		logger := log.WithComponent("notify")
		logger.Warn().Err(err).Str("task", p.TaskName).Msg("notification failed")
		if w.auditLog != nil {
			w.auditLog.Append(audit.OpNotificationFailed, p.TaskName, "webhook", w.endpoint,
				audit.OutcomeFailed, "error:"+err.Error())
		}
		return false
	}

	logger := log.WithComponent("notify")
	logger.Info().
		Str("task", p.TaskName).
		Str("status", p.NewStatus).
		Msg("notification sent")
	if w.auditLog != nil {
		w.auditLog.Append(audit.OpNotificationSent, p.TaskName, "webhook", w.endpoint,
			audit.OutcomeSuccess, fmt.Sprintf("status:%s->%s", p.OldStatus, p.NewStatus))
	}
	return true
}

func (w *Webhook) post(p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}
