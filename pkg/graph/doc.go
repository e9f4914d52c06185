/*
Package graph models a task's execution plan as a directed acyclic
graph of steps.

A Graph is built once from steps and an adjacency map, validated, and
then only advances per-step status while executing. Ordering is fully
deterministic so two runs over the same plan always execute the same
sequence.

# Structure

	Step:  id (unique), name, priority (≥1, unique), status,
	       estimated duration in minutes, optional alternative step id
	Graph: task id, steps, edges (step id → dependent step ids),
	       parallelizable groups, created_at, schema version (1)

# Validation

Validate returns a typed error for each structural defect: an empty
step list, a duplicate step id, a priority below 1, an edge endpoint
naming no step, or a cycle. Cycle detection is Kahn's algorithm over
in-degrees; a graph whose peel-off order cannot reach every step is
cyclic.

# Execution Order

ExecutionOrder produces a topological order with a deterministic
tiebreak: among the steps whose dependencies are all satisfied, the
lowest priority number runs first. Priorities are unique within a
graph, so the order is total.

# Persistence

WriteFile and LoadFile round-trip the graph as JSON under the vault's
Plans folder (`<task>.graph.json`), carrying task_id, steps, edges,
parallelizable_groups, created_at, and version. A reloaded graph
compares equal to the original, including step statuses.
*/
package graph
