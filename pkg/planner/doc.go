/*
Package planner decomposes task content into dependency-ordered
execution graphs.

The planner is template-driven, not generative: each task type maps to
a fixed step sequence, and the interesting work is inferring the type,
estimating step durations from observed history, and persisting the
result where both the executor and a human reviewer can read it.

# Type Inference

InferType counts keyword occurrences over the case-folded content for
each of the five typed vocabularies (document, email, data, code,
report) and picks the argmax; zero matches yields general. Types the
watcher produces that have no template of their own (image, unknown)
also plan as general.

# Templates

Every template is a sequential chain with priorities 1..n:

	document: read_source → analyze_content → generate_output →
	          validate_output → save_result
	email:    parse_email → extract_action → draft_response → review_draft
	data:     load_data → clean_data → process_data → validate_data →
	          export_data
	code:     read_requirements → plan_implementation → implement_code →
	          test_code → review_code
	report:   gather_data → analyze_data → generate_report →
	          format_report → review_report
	general:  understand_task → plan_approach → execute_task →
	          verify_result

Per-step duration estimates divide the learning store's mean duration
for the type across the steps once at least five samples exist;
anything thinner falls back to 1.0 minute per step.

# Output

Generate validates the graph, writes `Plans/<task>.graph.json`, and
renders a companion `<task>-plan.md` with frontmatter and a checkbox
list in execution order, linking back to the source task. Each
decomposition appends one plan_generated audit entry with step, edge,
and parallel-group counts. HasPlan lets the loop skip tasks that were
already planned.
*/
package planner
