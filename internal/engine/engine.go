package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"codelake/internal/types"
)

// Engine executes a task graph sequentially: one readiness batch at a time,
// one generation call in flight. Each Engine invocation owns its accumulator
// and completed set, so instances are single-use per request and need no
// locking.
type Engine struct {
	invoker types.GenerationInvoker
	logger  *zap.Logger
}

// New creates an execution engine around a generation invoker.
func New(invoker types.GenerationInvoker, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{invoker: invoker, logger: logger}
}

// Run walks the graph in dependency order and aggregates per-task artifacts.
// It terminates in at most Len(graph) iterations: Ready never returns an
// empty batch while tasks remain, and every executed task leaves remaining.
// Generation failures are absorbed by the invoker contract, so a bad task
// degrades its own artifact without aborting the rest of the plan.
func (e *Engine) Run(ctx context.Context, graph *TaskGraph) types.ExecutionResult {
	result := types.ExecutionResult{
		TaskOutputs: make(map[string]types.CodeArtifact, graph.Len()),
	}

	completed := make(map[string]struct{}, graph.Len())
	remaining := graph.Tasks()

	var accumulated string

	for len(remaining) > 0 {
		batch := Ready(completed, remaining)
		if len(batch) == 1 && hasUnmetDependency(completed, batch[0]) {
			e.logger.Warn("no task is ready; forcing progress",
				zap.String("task_id", batch[0].ID),
				zap.Strings("unmet_dependencies", unmetDependencies(completed, batch[0])))
		}

		for _, task := range batch {
			artifact := e.invoker.Generate(ctx, task, accumulated)
			result.TaskOutputs[task.ID] = artifact
			result.TaskOrder = append(result.TaskOrder, task.ID)

			accumulated += fmt.Sprintf("# Task: %s\n%s\n\n", task.Description, artifact.Code)

			for _, info := range artifact.MissingInfo {
				if info != "" {
					result.MissingInfo = append(result.MissingInfo, info)
				}
			}
			for _, sug := range artifact.Suggestions {
				if sug != "" {
					result.Suggestions = append(result.Suggestions, sug)
				}
			}

			completed[task.ID] = struct{}{}
			remaining = remove(remaining, task.ID)

			e.logger.Debug("task completed",
				zap.String("task_id", task.ID),
				zap.Float64("confidence", artifact.Confidence),
				zap.Int("remaining", len(remaining)))
		}
	}

	result.Code = accumulated
	result.Confidence = meanConfidence(result.TaskOutputs)
	return result
}

func hasUnmetDependency(completed map[string]struct{}, t types.Task) bool {
	return len(unmetDependencies(completed, t)) > 0
}

func unmetDependencies(completed map[string]struct{}, t types.Task) []string {
	var unmet []string
	for _, dep := range t.Dependencies {
		if _, ok := completed[dep]; !ok {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}

func remove(tasks []types.Task, id string) []types.Task {
	for i, t := range tasks {
		if t.ID == id {
			return append(tasks[:i:i], tasks[i+1:]...)
		}
	}
	return tasks
}

func meanConfidence(outputs map[string]types.CodeArtifact) float64 {
	if len(outputs) == 0 {
		return 0
	}
	var sum float64
	for _, a := range outputs {
		sum += a.Confidence
	}
	return sum / float64(len(outputs))
}
