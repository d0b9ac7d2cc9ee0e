package websearch

import "context"

// SearchResult holds a single search result.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Query is one search request passed to an adapter.
type Query struct {
	Text       string
	Category   string // "general" or "news"
	Language   string
	MaxResults int
}

// SearchAdapter is the interface for pluggable search backends.
type SearchAdapter interface {
	Search(ctx context.Context, q Query) ([]SearchResult, error)
}
