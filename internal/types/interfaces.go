package types

import "context"

// KnowledgeSource is a queryable provider of ranked documents. The primary
// indexed store implements it; retrieval treats any implementation the same.
type KnowledgeSource interface {
	// Search returns up to k documents relevant to the query, best first.
	// May fail when the underlying store is unavailable.
	Search(ctx context.Context, query string, k int) ([]ScoredDocument, error)
}

// FallbackSource is a best-effort, open-ended document source consulted when
// the primary source is sparse or low-confidence. Implementations should
// prefer returning an empty slice over an error.
type FallbackSource interface {
	Search(ctx context.Context, query string, maxResults int) ([]Document, error)
}

// PlanBuilder turns a request plus retrieved context into a task plan.
// Implementations must not fail: when structured planning is impossible they
// return a single-task fallback plan, so the engine always has work to run.
type PlanBuilder interface {
	Plan(ctx context.Context, request, docContext string) *Plan
}

// GenerationInvoker produces a code artifact for one task, given the code
// accumulated from previously completed tasks. Implementations must not fail:
// on internal error they return a degraded artifact with confidence 0, an
// error marker in the code, and a retry hint in MissingInfo. This contract is
// what lets the execution engine guarantee forward progress.
type GenerationInvoker interface {
	Generate(ctx context.Context, task Task, priorCode string) CodeArtifact
}
