package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	response string
	err      error
	system   string
	user     string
}

func (m *mockClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.system = systemPrompt
	m.user = userPrompt
	return m.response, m.err
}

func TestPlan_ParsesStructuredResponse(t *testing.T) {
	client := &mockClient{response: "```json\n" + `{
		"tasks": [
			{"id": "setup", "description": "Create the client", "sdk_components": ["Client"]},
			{"id": "use", "description": "Call the API", "sdk_components": ["Client.Call"], "dependencies": ["setup"]}
		]
	}` + "\n```"}

	plan := New(client, nil).Plan(context.Background(), "call the API", "docs about Client")

	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, "setup", plan.Tasks[0].ID)
	assert.Equal(t, []string{"setup"}, plan.Tasks[1].Dependencies)
	assert.Contains(t, client.user, "call the API")
	assert.Contains(t, client.user, "docs about Client")
}

func TestPlan_FallbackOnLLMError(t *testing.T) {
	client := &mockClient{err: errors.New("rate limited")}

	plan := New(client, nil).Plan(context.Background(), "do the thing", "")

	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "fallback_task", plan.Tasks[0].ID)
	assert.Equal(t, "Implement code for: do the thing", plan.Tasks[0].Description)
}

func TestPlan_FallbackOnUnparseableResponse(t *testing.T) {
	client := &mockClient{response: "Sure! Here is a plan:\n1. First..."}

	plan := New(client, nil).Plan(context.Background(), "do the thing", "")

	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "fallback_task", plan.Tasks[0].ID)
}

func TestPlan_FallbackOnEmptyTaskList(t *testing.T) {
	client := &mockClient{response: `{"tasks": []}`}

	plan := New(client, nil).Plan(context.Background(), "do the thing", "")

	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "fallback_task", plan.Tasks[0].ID)
}

func TestPlan_NormalizesTasks(t *testing.T) {
	client := &mockClient{response: `{
		"tasks": [
			{"id": "", "description": "Has no id"},
			{"id": "blank", "description": "   "}
		]
	}`}

	plan := New(client, nil).Plan(context.Background(), "request", "")

	require.Len(t, plan.Tasks, 1)
	assert.NotEmpty(t, plan.Tasks[0].ID)
	assert.Equal(t, "Has no id", plan.Tasks[0].Description)
}
