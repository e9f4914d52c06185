/*
Package dashboard renders Dashboard.md, the vault's human-readable
status board.

The dashboard is a markdown file, same as everything else in the
vault: an operator watches orchestration from the note app they
already have open. Refresh rewrites it each loop cycle from three
sources: folder counts, audit history, and the learning store.

# Sections

	Recent Activity   last 10 events, newest first, fed live by the
	                  events broker and reloaded from the previous
	                  render so restarts keep history
	Statistics        pending / in progress / completed today /
	                  completed all time / active plans
	Metrics (24h)     average completion time, error count, rollback
	                  incidents, SLA compliance, throughput
	Intelligence      prediction count, self-heal success ratio, risk
	                  distribution bucketed from risk_scored details
	                  (>0.7 high, >0.4 medium), learning data points
	Active Alerts     trigger table over the audit log: failed
	                  executions, SLA breaches, credential findings,
	                  rollbacks, heartbeat misses
	Recent Errors     newest failed entries
	System            watcher status line

Timestamps parse strictly; an entry whose ts is malformed is skipped
rather than guessed at. Sections degrade independently: a missing
audit log zeroes the history-driven numbers but the counts still
render.
*/
package dashboard
