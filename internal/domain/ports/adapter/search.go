package adapter

import "context"

// SearchResult is one organic SERP entry.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// SearchAdapter is the port for the web-scraping/SERP provider.
type SearchAdapter interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}
