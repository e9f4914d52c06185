/*
Package health runs the orchestrator's heartbeat: a set of subsystem
checks executed once per loop cycle, with damping so a single transient
blip does not flip a subsystem to unhealthy.

# Architecture

	┌──────────────────────────────────────────────────────────┐
	│                       Heartbeat                          │
	│  Run() each loop cycle → one Result per checker          │
	└─────┬────────────────────────────────────────────────────┘
	      │
	      ▼
	┌──────────────────────────────────────────────────────────┐
	│                    Checker Interface                     │
	│  • Name() string                                         │
	│  • Check() error                                         │
	└────────┬─────────────────────────────────────────────────┘
	         │
	    ┌────┴──────┬───────────┬────────────┐
	    ▼           ▼           ▼            ▼
	┌────────┐ ┌─────────┐ ┌──────────┐ ┌──────────┐
	│ Vault  │ │  Audit  │ │ Learning │ │ Endpoint │
	│Checker │ │ Checker │ │ Checker  │ │ Checker  │
	└────────┘ └─────────┘ └──────────┘ └──────────┘
	     │          │           │            │
	     ▼          ▼           ▼            ▼
	 folders    append to    read txn     GET probe
	 present    log file     on bolt      on webhook

# Checkers

VaultChecker stats the vault root and walks the required folder and
file list. A vault that lost its In_Progress folder mid-run is a
stop-the-world problem, not something to retry around.

AuditChecker opens the audit log for append and closes it again. The
audit trail is the system's memory; if it cannot be written, nothing
else should pretend to make progress.

LearningChecker runs an empty read transaction against the learning
database through the Pinger interface. A store that was closed or whose
file vanished fails immediately.

EndpointChecker probes an HTTP URL, typically the notification webhook.
The default status range is 200-499 because many webhook receivers
answer a bare GET with 404 or 405 while being perfectly reachable.

# Damping

Each subsystem carries a Status with consecutive failure and success
counters. A subsystem flips to unhealthy only after failing the
configured number of consecutive checks, and recovers after a single
success. Failures are appended to the audit log as heartbeat_fail
entries either way, so the dashboard's alert table sees every miss even
when damping keeps the subsystem nominally healthy.

# Usage

	hb := health.NewHeartbeat(auditLog, 3,
		health.NewVaultChecker(v),
		health.NewAuditChecker(auditLog),
		health.NewLearningChecker(store),
	)

	for range ticker.C {
		hb.Run()
		if !hb.Healthy() {
			// degrade: keep auditing, skip execution
		}
	}

Results also flow into the metrics health registry, so /health and
/ready report the same damped view the loop acts on.
*/
package health
