/*
Package risk computes composite risk scores and orders the execution
queue by them.

Each score blends four components, all normalized to [0,1]:

	sla_risk      urgency: elapsed fraction of the SLA budget
	complexity    simple 0.33, complex 0.67, manual_review 1.0
	impact        priority: low 0.25, normal 0.50, high 0.75, critical 1.0
	failure_rate  observed failure rate for the task type

The composite is the weighted sum under the configured Weights
(defaults 0.3/0.2/0.3/0.2), clamped to [0,1]. An sla_risk outside
[0,1] is a validation error rather than a silent clamp; the clamp
exists for accumulated floating error, not bad inputs.

Reorder stable-sorts candidates by descending composite, so equal
scores keep their ingestion order and the queue never flaps between
cycles. A candidate whose scoring fails is given a zero composite and
sorts to the end instead of vanishing. Every Score appends a
risk_scored audit entry with all four components (the dashboard's risk
distribution greps composite= back out of those), and every Reorder
appends one priority_adjusted entry naming the leading task ids.
*/
package risk
