/*
Package healing runs the recovery cascade when a plan step fails.

The Engine tries cheaper strategies before expensive ones, bounded by
the configured attempt budget:

	retry        run the same step again; transient failures are the
	             common case
	alternative  run the step's designated fallback, only when the
	             failed step names one that exists in the graph; a
	             missing alternative skips the stage without spending
	             an attempt
	partial      accept the work completed so far; succeeds only when
	             at least one graph step already finished, and marks
	             the failed step failed to keep the record honest

The cascade stops at the first success. Recover returns the full
attempt history either way; a history with no success tells the caller
to fall through to rollback.

Each attempt wraps the caller's ExecuteFunc with wall-clock timing and
panic capture: a panicking step becomes a failed attempt with the
panic text in its error detail, and the cascade continues. Every
attempt appends a self_heal_retry, self_heal_alternative, or
self_heal_partial audit entry recording strategy, outcome, duration,
and error detail.
*/
package healing
