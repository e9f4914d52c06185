/*
Package sla estimates deadline risk before it happens and records
breaches after they do.

# Predictor

Predict answers one question mid-flight: given how long this task has
already run, how likely is it to blow its SLA threshold? Three regimes:

 1. Already over: elapsed ≥ threshold is probability 1.0, no model
    needed.
 2. Informed: with at least three recorded samples for the task type,
    the remaining headroom is compared against the observed duration
    distribution: p = 1 − Φ((threshold − elapsed) / stdev), using the
    normal CDF via math.Erf. Zero variance degenerates to 0 or 1 by
    whether the historical mean clears the threshold.
 3. Cold start: the elapsed fraction of the threshold, clamped.

Probabilities bucket into recommendations: below 0.3 on_track, up to
0.7 monitor, above at_risk. Crossing the configured prediction
threshold flags the prediction; every call appends an sla_prediction
audit entry either way, flagged or not, so the dashboard can count
predictions rather than guesses.

# Tracker

The Tracker is the retrospective half: when a task reaches a terminal
status, CheckTask measures classified_at to completed_at against the
tier threshold (simple or complex minutes) and appends an sla_breach
entry on overrun. Tasks missing either timestamp are skipped rather
than counted against. Compliance summarizes the audit log over a
window as 1 − breaches/executed, reporting 1.0 when nothing executed.
*/
package sla
