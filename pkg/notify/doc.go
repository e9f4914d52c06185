/*
Package notify delivers task status-change notifications.

Notifier is a one-method interface, Send(Event) bool, and sending is
strictly fire-and-forget: a notification that cannot be delivered is
audited and dropped, never retried, and never surfaces an error into
the processing path. Task state must not depend on a webhook being up.

Two implementations:

	NoOp     always succeeds; the default when no channel is configured
	Webhook  POSTs a JSON payload {event_id, task_name, old_status,
	         new_status, timestamp, severity} with a 5s timeout

Severity is derived from the new status: failed and failed_rollback
transitions are critical, everything else info. Each delivery appends
a notification_sent or notification_failed audit entry. FromConfig
selects the webhook when notification_channel is "webhook" and an
endpoint is set, the no-op otherwise.
*/
package notify
