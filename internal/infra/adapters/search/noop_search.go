package search

import (
	"context"
	"time"

	"llm-search-insight/internal/domain/ports/adapter"
)

var _ adapter.SearchAdapter = (*NoopSearchAdapter)(nil)

// NoopSearchAdapter returns canned results for local/dev runs without a
// Bright Data key.
type NoopSearchAdapter struct{}

func NewNoopSearchAdapter() *NoopSearchAdapter {
	return &NoopSearchAdapter{}
}

func (a *NoopSearchAdapter) Search(ctx context.Context, query string) ([]adapter.SearchResult, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []adapter.SearchResult{
		{
			Title:   "Example result for: " + query,
			Snippet: "Canned search snippet for local development.",
			Source:  "example.com",
		},
	}, nil
}
