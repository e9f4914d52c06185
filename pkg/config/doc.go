/*
Package config loads and validates the orchestrator's configuration.

Precedence, lowest to highest: built-in defaults, an optional YAML
file (--config), a .env file in the working directory (loaded into the
process environment without overriding variables already set), then
HUTCH_* environment variables. The result is a plain value struct
passed to constructors; nothing reads configuration globally.

Defaults cover single-host operation out of the box: vault at
./hutch_vault, inbox at ./inbox, 30s loop cadence, 3 parallel tasks,
15 minute task timeout, 2/10 minute simple/complex SLA tiers, 0.7
prediction threshold, 3 recovery attempts, 30 day learning window,
7 day rollback retention, risk weights 0.3/0.2/0.3/0.2. The
intelligence layers (predictive SLA, self-healing, risk ordering) are
on by default; auto-execution is off for both tiers until explicitly
enabled.

Validate rejects configurations that cannot run (non-positive
parallelism or cadence, negative windows, weight or threshold values
outside range) at load time, before any component starts.
*/
package config
