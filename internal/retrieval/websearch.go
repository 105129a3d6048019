package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"codelake/internal/types"
)

const defaultSearchEndpoint = "https://www.googleapis.com/customsearch/v1"

// WebSearch is a best-effort fallback source backed by the Google Custom
// Search JSON API. It fetches each result page and extracts its visible text.
type WebSearch struct {
	apiKey     string
	cseID      string
	endpoint   string
	maxResults int
	throttle   time.Duration
	client     *http.Client
	logger     *zap.Logger
}

// WebSearchOption configures a WebSearch source.
type WebSearchOption func(*WebSearch)

// WithEndpoint overrides the search API endpoint (used by tests).
func WithEndpoint(endpoint string) WebSearchOption {
	return func(w *WebSearch) { w.endpoint = endpoint }
}

// WithThrottle sets the delay between page fetches.
func WithThrottle(d time.Duration) WebSearchOption {
	return func(w *WebSearch) { w.throttle = d }
}

// WithWebLogger sets the source's logger.
func WithWebLogger(l *zap.Logger) WebSearchOption {
	return func(w *WebSearch) { w.logger = l }
}

// NewWebSearch creates a web search source. API key and CSE id are required;
// without credentials there is no secondary source.
func NewWebSearch(apiKey, cseID string, maxResults int, opts ...WebSearchOption) (*WebSearch, error) {
	if apiKey == "" || cseID == "" {
		return nil, fmt.Errorf("web search requires a Google API key and CSE id")
	}
	if maxResults <= 0 {
		maxResults = 3
	}

	w := &WebSearch{
		apiKey:     apiKey,
		cseID:      cseID,
		endpoint:   defaultSearchEndpoint,
		maxResults: maxResults,
		throttle:   time.Second,
		client:     &http.Client{Timeout: 15 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

type searchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

// Search implements types.FallbackSource. Per-page fetch failures are
// skipped; only a failed search API call surfaces as an error.
func (w *WebSearch) Search(ctx context.Context, query string, maxResults int) ([]types.Document, error) {
	if maxResults <= 0 || maxResults > w.maxResults {
		maxResults = w.maxResults
	}

	items, err := w.searchAPI(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		w.logger.Debug("no web results", zap.String("query", query))
		return nil, nil
	}

	var docs []types.Document
	for i, item := range items {
		if item.Link == "" {
			continue
		}
		if i > 0 && w.throttle > 0 {
			// Throttle page fetches to avoid rate limiting.
			select {
			case <-time.After(w.throttle):
			case <-ctx.Done():
				return docs, nil
			}
		}

		text, err := w.fetchPageText(ctx, item.Link)
		if err != nil {
			w.logger.Debug("skipping unfetchable page",
				zap.String("url", item.Link), zap.Error(err))
			continue
		}
		docs = append(docs, types.Document{
			Content: text,
			Metadata: map[string]any{
				"source":  item.Link,
				"title":   item.Title,
				"snippet": item.Snippet,
			},
		})
	}
	return docs, nil
}

func (w *WebSearch) searchAPI(ctx context.Context, query string, num int) ([]searchItem, error) {
	params := url.Values{}
	params.Set("key", w.apiKey)
	params.Set("cx", w.cseID)
	params.Set("q", query)
	params.Set("num", fmt.Sprintf("%d", num))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("web search returned status %d: %s", resp.StatusCode, string(msg))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return result.Items, nil
}

func (w *WebSearch) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "codelake/0.3 documentation fetcher")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	node, err := html.Parse(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	text := ExtractText(node)
	if text == "" {
		return "", fmt.Errorf("no text content")
	}
	return text, nil
}

// ExtractText walks an HTML tree and collects visible text, skipping
// script/style subtrees and collapsing whitespace between blocks.
func ExtractText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
