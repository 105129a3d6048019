// Package planner turns a code request plus retrieved documentation into a
// structured task plan via the LLM.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codelake/internal/llm"
	"codelake/internal/types"
)

const planSystemPrompt = `You are an expert SDK architect tasked with breaking down a coding request into logical steps.

1. Analyze the request and break it down into a sequence of coding tasks.
2. For each task, identify the specific SDK components (classes, methods, etc.) that will be needed.
3. Establish dependencies between tasks where necessary.
4. Ensure the sequence of tasks will produce complete, functional code.

Respond with ONLY a JSON object of the form:
{"tasks":[{"id":"<unique id>","description":"<what to build>","sdk_components":["<lookup key>"],"dependencies":["<task id>"]}]}`

// Planner implements types.PlanBuilder on top of an LLM.
type Planner struct {
	client llm.Client
	logger *zap.Logger
}

// New creates a planner.
func New(client llm.Client, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{client: client, logger: logger}
}

// Plan builds a task plan for the request. It never fails: when the LLM is
// unreachable or its output cannot be parsed, a single catch-all task plan is
// returned so the engine always has work to run.
func (p *Planner) Plan(ctx context.Context, request, docContext string) *types.Plan {
	prompt := fmt.Sprintf("# CODE REQUEST\n%s\n\n# SDK CONTEXT\nThe following SDK context should inform your planning:\n%s", request, docContext)

	resp, err := p.client.Complete(ctx, planSystemPrompt, prompt)
	if err != nil {
		p.logger.Warn("planning failed, using fallback plan", zap.Error(err))
		return fallbackPlan(request)
	}

	var plan types.Plan
	if err := json.Unmarshal([]byte(llm.CleanJSONResponse(resp)), &plan); err != nil {
		p.logger.Warn("unparseable plan, using fallback plan", zap.Error(err))
		return fallbackPlan(request)
	}

	plan = normalize(plan)
	if len(plan.Tasks) == 0 {
		p.logger.Warn("planner produced no tasks, using fallback plan")
		return fallbackPlan(request)
	}

	p.logger.Info("created plan", zap.Int("tasks", len(plan.Tasks)))
	return &plan
}

// normalize fills in missing task ids and drops tasks with no description.
// Dependency ids are left as declared: cycles and dangling references are the
// engine's problem, resolved by forced progress at execution time.
func normalize(plan types.Plan) types.Plan {
	tasks := plan.Tasks[:0]
	for _, t := range plan.Tasks {
		if strings.TrimSpace(t.Description) == "" {
			continue
		}
		if strings.TrimSpace(t.ID) == "" {
			t.ID = "task_" + uuid.NewString()[:8]
		}
		tasks = append(tasks, t)
	}
	plan.Tasks = tasks
	return plan
}

func fallbackPlan(request string) *types.Plan {
	return &types.Plan{
		Tasks: []types.Task{{
			ID:          "fallback_task",
			Description: "Implement code for: " + request,
		}},
	}
}
