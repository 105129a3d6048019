// Package retrieval implements confidence-gated documentation retrieval: a
// primary indexed source with fallback to an open-ended secondary source when
// results are sparse or low-confidence.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"codelake/internal/types"
)

// Status classifies how a retrieval was satisfied.
type Status string

const (
	// StatusPrimary: primary results cleared the confidence bar; no fallback.
	StatusPrimary Status = "primary"
	// StatusBlended: secondary results were appended after primary ones.
	StatusBlended Status = "blended"
	// StatusFallback: primary returned nothing usable; results are secondary-only.
	StatusFallback Status = "fallback"
	// StatusDegraded: both sources failed or returned nothing.
	StatusDegraded Status = "degraded"
)

// Outcome reports how a Retrieve call was satisfied, making the fallback
// policy visible to callers instead of burying it in logs.
type Outcome struct {
	Status   Status
	MaxScore float64
	Reason   string
}

// FilterFunc decides whether a primary result is eligible. Applied before
// any scoring decision.
type FilterFunc func(types.Document) bool

// Coordinator queries the primary source, evaluates confidence, and
// conditionally blends in secondary-source results.
type Coordinator struct {
	primary   types.KnowledgeSource
	secondary types.FallbackSource

	threshold   float64
	k           int
	filter      FilterFunc
	useFallback bool
	logger      *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFilter installs a per-result filter predicate.
func WithFilter(f FilterFunc) Option {
	return func(c *Coordinator) { c.filter = f }
}

// WithFallback enables or disables low-confidence fallback to the secondary
// source. A primary failure still falls back regardless of this setting.
func WithFallback(enabled bool) Option {
	return func(c *Coordinator) { c.useFallback = enabled }
}

// WithLogger sets the coordinator's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator builds a Coordinator. secondary may be nil, in which case
// all fallback paths degrade to empty results.
func NewCoordinator(primary types.KnowledgeSource, secondary types.FallbackSource, threshold float64, k int, opts ...Option) *Coordinator {
	c := &Coordinator{
		primary:     primary,
		secondary:   secondary,
		threshold:   threshold,
		k:           k,
		useFallback: true,
		logger:      zap.NewNop(),
	}
	if c.k <= 0 {
		c.k = 5
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Retrieve returns up to k documents for the query. Source errors never
// propagate: a primary failure triggers one fallback attempt against the
// secondary source, and a secondary failure degrades to an empty result.
func (c *Coordinator) Retrieve(ctx context.Context, query string) (types.RetrievalResult, Outcome) {
	primary, err := c.primary.Search(ctx, query, c.k)
	if err != nil {
		c.logger.Warn("primary source failed, falling back",
			zap.String("query", query), zap.Error(err))
		docs := c.searchSecondary(ctx, query)
		if len(docs) == 0 {
			return nil, Outcome{Status: StatusDegraded, Reason: fmt.Sprintf("primary source failed: %v", err)}
		}
		return c.truncate(dedupe(scoreless(docs))), Outcome{Status: StatusFallback, Reason: "primary source failed"}
	}

	if c.filter != nil {
		filtered := primary[:0]
		for _, sd := range primary {
			if c.filter(sd.Document) {
				filtered = append(filtered, sd)
			}
		}
		primary = filtered
	}

	maxScore := 0.0
	for _, sd := range primary {
		if sd.Score > maxScore {
			maxScore = sd.Score
		}
	}

	result := dedupe(primary)

	lowConfidence := maxScore < c.threshold && c.useFallback
	if len(result) > 0 && !lowConfidence {
		return c.truncate(result), Outcome{Status: StatusPrimary, MaxScore: maxScore}
	}

	c.logger.Info("triggering fallback retrieval",
		zap.String("query", query),
		zap.Float64("max_score", maxScore),
		zap.Float64("threshold", c.threshold),
		zap.Int("primary_results", len(result)))

	secondary := c.searchSecondary(ctx, augmentQuery(query))

	if len(result) == 0 {
		if len(secondary) == 0 {
			return nil, Outcome{Status: StatusDegraded, MaxScore: maxScore, Reason: "no results from either source"}
		}
		return c.truncate(dedupe(scoreless(secondary))), Outcome{Status: StatusFallback, MaxScore: maxScore, Reason: "no primary results"}
	}

	if len(secondary) == 0 {
		return c.truncate(result), Outcome{Status: StatusPrimary, MaxScore: maxScore, Reason: "fallback returned nothing"}
	}

	for _, doc := range secondary {
		if !result.Contains(doc.Content) {
			result = append(result, types.ScoredDocument{Document: doc})
		}
	}
	return c.truncate(result), Outcome{
		Status:   StatusBlended,
		MaxScore: maxScore,
		Reason:   fmt.Sprintf("max score %.3f below threshold %.3f", maxScore, c.threshold),
	}
}

// searchSecondary queries the fallback source, swallowing its errors.
func (c *Coordinator) searchSecondary(ctx context.Context, query string) []types.Document {
	if c.secondary == nil {
		return nil
	}
	docs, err := c.secondary.Search(ctx, query, c.k)
	if err != nil {
		c.logger.Warn("secondary source failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return docs
}

func (c *Coordinator) truncate(r types.RetrievalResult) types.RetrievalResult {
	if len(r) > c.k {
		return r[:c.k]
	}
	return r
}

// augmentQuery rephrases the query with documentation intent for the
// open-ended secondary source.
func augmentQuery(query string) string {
	return "SDK documentation for " + query
}

// dedupe removes documents with duplicate content, first occurrence wins.
func dedupe(in types.RetrievalResult) types.RetrievalResult {
	seen := make(map[string]struct{}, len(in))
	out := make(types.RetrievalResult, 0, len(in))
	for _, sd := range in {
		if _, ok := seen[sd.Document.Content]; ok {
			continue
		}
		seen[sd.Document.Content] = struct{}{}
		out = append(out, sd)
	}
	return out
}

func scoreless(docs []types.Document) types.RetrievalResult {
	out := make(types.RetrievalResult, len(docs))
	for i, d := range docs {
		out[i] = types.ScoredDocument{Document: d}
	}
	return out
}
