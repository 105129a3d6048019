// Package types holds the shared data contracts of codelake: retrieved
// documents, task plans, and generation artifacts. These are plain values
// with no knowledge of storage, transport, or the LLM behind them.
package types

import "strings"

// Document is a unit of retrieved documentation. Immutable once retrieved.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Source returns the metadata source field, or "Unknown" when absent.
func (d Document) Source() string {
	if s, ok := d.Metadata["source"].(string); ok && s != "" {
		return s
	}
	return "Unknown"
}

// ScoredDocument pairs a document with its relevance score. For documents
// retrieved from the vector store the score is cosine similarity in [-1, 1];
// web-sourced documents carry score 0 (unranked).
type ScoredDocument struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// RetrievalResult is an ordered sequence of scored documents, best first,
// deduplicated by content.
type RetrievalResult []ScoredDocument

// Context renders the result as a single context string for prompting,
// one document per block separated by blank lines.
func (r RetrievalResult) Context() string {
	parts := make([]string, 0, len(r))
	for _, sd := range r {
		parts = append(parts, sd.Document.Content)
	}
	return strings.Join(parts, "\n\n")
}

// Contains reports whether the result already holds a document with the
// given content.
func (r RetrievalResult) Contains(content string) bool {
	for _, sd := range r {
		if sd.Document.Content == content {
			return true
		}
	}
	return false
}

// Task is a single unit of work in a code generation plan.
type Task struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Components   []string `json:"sdk_components"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Plan is the ordered set of tasks produced by the planner for one request.
// Task order is the planner's declaration order; execution order is decided
// by the engine from the declared dependencies.
type Plan struct {
	Tasks   []Task         `json:"tasks"`
	Context map[string]any `json:"context,omitempty"`
}

// CodeArtifact is the structured output produced for one task. Immutable.
type CodeArtifact struct {
	Code        string   `json:"code"`
	Explanation string   `json:"explanation"`
	Confidence  float64  `json:"confidence"`
	MissingInfo []string `json:"missing_info,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// ExecutionResult aggregates the per-task artifacts of one engine pass.
type ExecutionResult struct {
	// Code is the concatenation of all task contributions in completion order.
	Code string `json:"code"`

	// TaskOutputs maps task id to the artifact produced for it.
	TaskOutputs map[string]CodeArtifact `json:"task_outputs"`

	// TaskOrder lists task ids in completion order.
	TaskOrder []string `json:"task_order,omitempty"`

	// Confidence is the mean of per-task confidences, 0 when there are no tasks.
	Confidence float64 `json:"confidence"`

	// MissingInfo and Suggestions are flattened in task-completion order.
	MissingInfo []string `json:"missing_info,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}
