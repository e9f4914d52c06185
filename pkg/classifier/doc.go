/*
Package classifier decides whether a task is safe to execute
automatically.

Classification runs six sequential gates over the task content and its
plan steps. The first failing gate short-circuits the rest: every
later gate is recorded as skipped, and the failure reason lands in the
audit log as a gate_blocked entry. The verdict is a complexity tier:

	simple         ≤5 actionable steps, all gates passed
	complex        >5 steps, or any gate failed
	manual_review  >15 steps; never auto-executed

# Gates

 1. Step count - counts actionable (non-empty, non-heading) plan
    steps. Over 15 ends classification immediately as manual_review.
 2. Credentials - keyword scan (password, secret, token, api_key,
    oauth, ssh, certificate, .pem, .env, ...) over content and steps.
    Touching credentials means a human set it up; fail to complex.
 3. Determinism - steps mentioning network calls, email sending,
    deployment, or databases are not reproducible; fail to complex.
 4. Permissions - network keywords require the named service to be on
    the configured allowlist; absolute paths outside the vault root
    fail (references into the vault's own folders are fine).
 5. SLA feasibility - estimates duration from audit history for the
    candidate tier and fails when it exceeds 1.5x the SLA threshold.
    No history passes; optimism is corrected by the predictor later.
 6. Rollback readiness - complex tasks must have the archive directory
    in place before they can be admitted; simple tasks skip this gate.

Gate results are returned as a map (gate_1_step_count through
gate_6_rollback, values pass/fail/skipped and the annotated variants
fail:manual_review and skipped:simple) and written into the task's
frontmatter for operator review.

# Override

A task carrying override metadata bypasses all six gates: each is
recorded as skipped, an override_applied entry is appended with the
reason, and the tier falls back to step count alone. The escape hatch
exists for operators who know better; the audit trail remembers they
used it.
*/
package classifier
