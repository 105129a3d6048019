// Package llm provides the language model client used by planning,
// generation, and conversation.
package llm

import "context"

// Client is the minimal completion interface the rest of codelake depends on.
type Client interface {
	// Complete sends a system + user prompt pair and returns the model's text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
