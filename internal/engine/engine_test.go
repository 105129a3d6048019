package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codelake/internal/types"
)

// recordingInvoker records each generation call and serves canned artifacts.
type recordingInvoker struct {
	artifacts map[string]types.CodeArtifact
	calls     []string
	priors    map[string]string
}

func newRecordingInvoker() *recordingInvoker {
	return &recordingInvoker{
		artifacts: make(map[string]types.CodeArtifact),
		priors:    make(map[string]string),
	}
}

func (r *recordingInvoker) Generate(ctx context.Context, task types.Task, priorCode string) types.CodeArtifact {
	r.calls = append(r.calls, task.ID)
	r.priors[task.ID] = priorCode
	if a, ok := r.artifacts[task.ID]; ok {
		return a
	}
	return types.CodeArtifact{Code: "code_" + task.ID, Confidence: 1.0}
}

func TestRun_TopologicalRespect(t *testing.T) {
	// Declared out of order on purpose: c depends on b depends on a.
	graph := NewTaskGraph([]types.Task{task("c", "b"), task("b", "a"), task("a")})
	inv := newRecordingInvoker()

	result := New(inv, nil).Run(context.Background(), graph)

	assert.Equal(t, []string{"a", "b", "c"}, inv.calls)
	assert.Len(t, result.TaskOutputs, 3)

	// Each task sees every predecessor's code in its prior context.
	assert.Empty(t, inv.priors["a"])
	assert.Contains(t, inv.priors["b"], "code_a")
	assert.Contains(t, inv.priors["c"], "code_a")
	assert.Contains(t, inv.priors["c"], "code_b")
}

func TestRun_AccumulatorFormat(t *testing.T) {
	graph := NewTaskGraph([]types.Task{
		{ID: "a", Description: "build the client"},
		{ID: "b", Description: "wire it up", Dependencies: []string{"a"}},
	})
	inv := newRecordingInvoker()

	result := New(inv, nil).Run(context.Background(), graph)

	assert.Equal(t, "# Task: build the client\ncode_a\n\n", inv.priors["b"])
	assert.Equal(t,
		"# Task: build the client\ncode_a\n\n# Task: wire it up\ncode_b\n\n",
		result.Code)
}

func TestRun_TerminationOnCycle(t *testing.T) {
	graph := NewTaskGraph([]types.Task{task("a", "b"), task("b", "a")})
	inv := newRecordingInvoker()

	result := New(inv, nil).Run(context.Background(), graph)

	// Each task executes exactly once; the forced task goes first, which
	// unblocks the other in the next batch.
	assert.Equal(t, []string{"a", "b"}, inv.calls)
	assert.Len(t, result.TaskOutputs, 2)
}

func TestRun_AggregationCorrectness(t *testing.T) {
	graph := NewTaskGraph([]types.Task{task("a"), task("b", "a"), task("c", "b")})
	inv := newRecordingInvoker()
	inv.artifacts["a"] = types.CodeArtifact{Code: "x", Confidence: 0.9, MissingInfo: []string{"need a"}}
	inv.artifacts["b"] = types.CodeArtifact{Code: "y", Confidence: 0.6, Suggestions: []string{"tidy b"}}
	inv.artifacts["c"] = types.CodeArtifact{Code: "z", Confidence: 0.3, MissingInfo: []string{"need c"}}

	result := New(inv, nil).Run(context.Background(), graph)

	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
	// Completion order, not declaration order, drives advisory order.
	assert.Equal(t, []string{"need a", "need c"}, result.MissingInfo)
	assert.Equal(t, []string{"tidy b"}, result.Suggestions)
}

func TestRun_CompletionOrderFlattening(t *testing.T) {
	// b completes before a: a waits on b via the dependency.
	graph := NewTaskGraph([]types.Task{task("a", "b"), task("b")})
	inv := newRecordingInvoker()
	inv.artifacts["a"] = types.CodeArtifact{Confidence: 1, MissingInfo: []string{"from a"}}
	inv.artifacts["b"] = types.CodeArtifact{Confidence: 1, MissingInfo: []string{"from b"}}

	result := New(inv, nil).Run(context.Background(), graph)

	assert.Equal(t, []string{"b", "a"}, inv.calls)
	assert.Equal(t, []string{"b", "a"}, result.TaskOrder)
	assert.Equal(t, []string{"from b", "from a"}, result.MissingInfo)
}

func TestRun_EmptyAdvisoryEntriesOmitted(t *testing.T) {
	graph := NewTaskGraph([]types.Task{task("a")})
	inv := newRecordingInvoker()
	inv.artifacts["a"] = types.CodeArtifact{Confidence: 1, MissingInfo: []string{"", "real"}, Suggestions: []string{""}}

	result := New(inv, nil).Run(context.Background(), graph)

	assert.Equal(t, []string{"real"}, result.MissingInfo)
	assert.Empty(t, result.Suggestions)
}

func TestRun_DegradedGenerationIsolation(t *testing.T) {
	graph := NewTaskGraph([]types.Task{task("a"), task("b", "a"), task("c", "b")})
	inv := newRecordingInvoker()
	// Task b's generation failed downstream; its invoker honored the
	// degraded-artifact contract.
	inv.artifacts["b"] = types.CodeArtifact{
		Code:        "# Error generating code for: task b",
		Confidence:  0.0,
		MissingInfo: []string{"generation failed, retry with more detail"},
	}

	result := New(inv, nil).Run(context.Background(), graph)

	require.Len(t, result.TaskOutputs, 3)
	assert.Equal(t, 0.0, result.TaskOutputs["b"].Confidence)
	assert.NotEmpty(t, result.TaskOutputs["b"].MissingInfo)
	assert.Equal(t, 1.0, result.TaskOutputs["a"].Confidence)
	assert.Equal(t, 1.0, result.TaskOutputs["c"].Confidence)
	// The failed task's block still enters the accumulator, keeping the
	// progress invariant intact.
	assert.Contains(t, result.Code, "# Error generating code for: task b")
}

func TestRun_EmptyPlan(t *testing.T) {
	result := New(newRecordingInvoker(), nil).Run(context.Background(), NewTaskGraph(nil))

	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.Code)
	assert.Empty(t, result.MissingInfo)
	assert.Empty(t, result.Suggestions)
	assert.Empty(t, result.TaskOutputs)
}

func TestRun_LargeLinearChainTerminates(t *testing.T) {
	var tasks []types.Task
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("t%02d", i)
		if i == 0 {
			tasks = append(tasks, task(id))
			continue
		}
		tasks = append(tasks, task(id, fmt.Sprintf("t%02d", i-1)))
	}
	// Reverse declaration order to force one task per batch.
	for i, j := 0, len(tasks)-1; i < j; i, j = i+1, j-1 {
		tasks[i], tasks[j] = tasks[j], tasks[i]
	}

	inv := newRecordingInvoker()
	result := New(inv, nil).Run(context.Background(), NewTaskGraph(tasks))

	assert.Len(t, result.TaskOutputs, 50)
	assert.True(t, strings.HasPrefix(inv.calls[0], "t00"))
	assert.Equal(t, "t49", inv.calls[len(inv.calls)-1])
}
