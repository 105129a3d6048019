// Package engine walks a task plan in dependency order, invoking code
// generation per task and aggregating the per-task artifacts into one result.
package engine

import "codelake/internal/types"

// TaskGraph holds a plan's tasks keyed by id, preserving the planner's
// declaration order. Dependency ids are not validated at construction:
// cycles and dangling references are tolerated and resolved lazily at
// readiness-query time by the forced-progress rule.
type TaskGraph struct {
	tasks map[string]types.Task
	order []types.Task
}

// NewTaskGraph builds a graph from the planner's task list.
func NewTaskGraph(tasks []types.Task) *TaskGraph {
	g := &TaskGraph{
		tasks: make(map[string]types.Task, len(tasks)),
		order: make([]types.Task, 0, len(tasks)),
	}
	for _, t := range tasks {
		if _, dup := g.tasks[t.ID]; dup {
			continue
		}
		g.tasks[t.ID] = t
		g.order = append(g.order, t)
	}
	return g
}

// Len returns the number of tasks in the graph.
func (g *TaskGraph) Len() int {
	return len(g.order)
}

// Tasks returns the tasks in declaration order.
func (g *TaskGraph) Tasks() []types.Task {
	out := make([]types.Task, len(g.order))
	copy(out, g.order)
	return out
}

// Lookup returns the task with the given id.
func (g *TaskGraph) Lookup(id string) (types.Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Ready returns the subsequence of remaining whose every dependency is in
// completed. When nothing is ready but tasks remain (a cycle, or a dependency
// on an id outside the graph), it returns the first remaining task alone:
// a malformed plan must never hang the engine, so liveness wins over strict
// dependency order. Note this rule cannot distinguish a true cycle from a
// satisfiable dependency merely listed out of order; callers are warned via
// the engine's forced-progress log.
func Ready(completed map[string]struct{}, remaining []types.Task) []types.Task {
	var ready []types.Task
	for _, t := range remaining {
		satisfied := true
		for _, dep := range t.Dependencies {
			if _, ok := completed[dep]; !ok {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, t)
		}
	}

	if len(ready) == 0 && len(remaining) > 0 {
		return remaining[:1]
	}
	return ready
}
