package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codelake/internal/types"
)

type mockPrimary struct {
	results []types.ScoredDocument
	err     error
	queries []string
}

func (m *mockPrimary) Search(ctx context.Context, query string, k int) ([]types.ScoredDocument, error) {
	m.queries = append(m.queries, query)
	return m.results, m.err
}

type mockSecondary struct {
	results []types.Document
	err     error
	queries []string
}

func (m *mockSecondary) Search(ctx context.Context, query string, maxResults int) ([]types.Document, error) {
	m.queries = append(m.queries, query)
	return m.results, m.err
}

func scored(content string, score float64) types.ScoredDocument {
	return types.ScoredDocument{Document: types.Document{Content: content}, Score: score}
}

func TestRetrieve_HighConfidencePrimaryOnly(t *testing.T) {
	primary := &mockPrimary{results: []types.ScoredDocument{scored("a", 0.95), scored("b", 0.9)}}
	secondary := &mockSecondary{results: []types.Document{{Content: "web"}}}
	c := NewCoordinator(primary, secondary, 0.85, 5)

	result, outcome := c.Retrieve(context.Background(), "query")

	assert.Equal(t, StatusPrimary, outcome.Status)
	assert.InDelta(t, 0.95, outcome.MaxScore, 1e-9)
	require.Len(t, result, 2)
	assert.Empty(t, secondary.queries, "secondary must not be consulted")
}

func TestRetrieve_EmptyPrimaryTriggersFallback(t *testing.T) {
	primary := &mockPrimary{}
	secondary := &mockSecondary{results: []types.Document{{Content: "web1"}, {Content: "web2"}}}
	c := NewCoordinator(primary, secondary, 0.85, 5)

	result, outcome := c.Retrieve(context.Background(), "query")

	assert.Equal(t, StatusFallback, outcome.Status)
	require.Len(t, result, 2)
	assert.Equal(t, "web1", result[0].Document.Content)
	require.Len(t, secondary.queries, 1)
	assert.Equal(t, "SDK documentation for query", secondary.queries[0])
}

func TestRetrieve_ConfidenceGateBlendsSecondary(t *testing.T) {
	primary := &mockPrimary{results: []types.ScoredDocument{scored("a", 0.5)}}
	secondary := &mockSecondary{results: []types.Document{{Content: "a"}, {Content: "web"}}}
	c := NewCoordinator(primary, secondary, 0.85, 5)

	result, outcome := c.Retrieve(context.Background(), "query")

	assert.Equal(t, StatusBlended, outcome.Status)
	require.Len(t, result, 2)
	// Primary first, secondary appended, duplicate content dropped.
	assert.Equal(t, "a", result[0].Document.Content)
	assert.Equal(t, "web", result[1].Document.Content)
}

func TestRetrieve_FallbackDisabledKeepsLowConfidencePrimary(t *testing.T) {
	primary := &mockPrimary{results: []types.ScoredDocument{scored("a", 0.1)}}
	secondary := &mockSecondary{results: []types.Document{{Content: "web"}}}
	c := NewCoordinator(primary, secondary, 0.85, 5, WithFallback(false))

	result, outcome := c.Retrieve(context.Background(), "query")

	assert.Equal(t, StatusPrimary, outcome.Status)
	require.Len(t, result, 1)
	assert.Empty(t, secondary.queries)
}

func TestRetrieve_TruncatesToK(t *testing.T) {
	primary := &mockPrimary{results: []types.ScoredDocument{scored("a", 0.2)}}
	secondary := &mockSecondary{results: []types.Document{
		{Content: "w1"}, {Content: "w2"}, {Content: "w3"},
	}}
	c := NewCoordinator(primary, secondary, 0.85, 2)

	result, _ := c.Retrieve(context.Background(), "query")

	assert.Len(t, result, 2)
}

func TestRetrieve_PrimaryErrorFallsBack(t *testing.T) {
	primary := &mockPrimary{err: errors.New("store offline")}
	secondary := &mockSecondary{results: []types.Document{{Content: "web"}}}
	c := NewCoordinator(primary, secondary, 0.85, 5)

	result, outcome := c.Retrieve(context.Background(), "query")

	assert.Equal(t, StatusFallback, outcome.Status)
	require.Len(t, result, 1)
	// Full original query is retried against the secondary source.
	require.Len(t, secondary.queries, 1)
	assert.Equal(t, "query", secondary.queries[0])
}

func TestRetrieve_BothSourcesFailDegradesToEmpty(t *testing.T) {
	primary := &mockPrimary{err: errors.New("store offline")}
	secondary := &mockSecondary{err: errors.New("network down")}
	c := NewCoordinator(primary, secondary, 0.85, 5)

	result, outcome := c.Retrieve(context.Background(), "query")

	assert.Empty(t, result)
	assert.Equal(t, StatusDegraded, outcome.Status)
}

func TestRetrieve_PrimaryErrorNoSecondary(t *testing.T) {
	primary := &mockPrimary{err: errors.New("store offline")}
	c := NewCoordinator(primary, nil, 0.85, 5)

	result, outcome := c.Retrieve(context.Background(), "query")

	assert.Empty(t, result)
	assert.Equal(t, StatusDegraded, outcome.Status)
}

func TestRetrieve_FilterAppliedBeforeScoring(t *testing.T) {
	primary := &mockPrimary{results: []types.ScoredDocument{scored("keep", 0.9), scored("drop", 0.99)}}
	secondary := &mockSecondary{results: []types.Document{{Content: "web"}}}
	c := NewCoordinator(primary, secondary, 0.95, 5, WithFilter(func(d types.Document) bool {
		return d.Content != "drop"
	}))

	result, outcome := c.Retrieve(context.Background(), "query")

	// The 0.99 hit was filtered out, so max score is 0.9 < 0.95 and the
	// secondary source is blended in.
	assert.Equal(t, StatusBlended, outcome.Status)
	assert.InDelta(t, 0.9, outcome.MaxScore, 1e-9)
	require.Len(t, result, 2)
	assert.Equal(t, "keep", result[0].Document.Content)
}

func TestDedupe_Idempotent(t *testing.T) {
	in := types.RetrievalResult{scored("a", 0.9), scored("b", 0.8)}
	doubled := append(append(types.RetrievalResult{}, in...), in...)

	once := dedupe(doubled)
	twice := dedupe(once)

	assert.Equal(t, once, twice)
	assert.Len(t, once, 2)
}
