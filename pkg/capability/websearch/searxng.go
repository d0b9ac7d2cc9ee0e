package websearch

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/rhuss/palaver/pkg/capability/rest"
)

// htmlTagRegex matches HTML tags for stripping from snippets.
var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// SearXNGAdapter implements SearchAdapter using a SearXNG instance with the
// JSON output format enabled.
type SearXNGAdapter struct {
	client *rest.Client
}

// NewSearXNG creates a SearXNG adapter with the given base URL.
func NewSearXNG(baseURL string, httpClient *http.Client) *SearXNGAdapter {
	return &SearXNGAdapter{client: rest.New(baseURL, httpClient)}
}

type searxngResponse struct {
	Results []searxngResult `json:"results"`
}

type searxngResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Search queries the SearXNG instance.
func (s *SearXNGAdapter) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	params := url.Values{
		"q":          {q.Text},
		"format":     {"json"},
		"categories": {q.Category},
	}
	if q.Language != "" {
		params.Set("language", q.Language)
	}

	var sr searxngResponse
	if err := s.client.GetJSON(ctx, "/search", params, &sr); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, min(len(sr.Results), q.MaxResults))
	for _, r := range sr.Results {
		if len(results) >= q.MaxResults {
			break
		}
		results = append(results, SearchResult{
			Title:   stripHTML(r.Title),
			URL:     r.URL,
			Snippet: stripHTML(r.Content),
		})
	}
	return results, nil
}

// stripHTML removes HTML tags from text.
func stripHTML(s string) string {
	return strings.TrimSpace(htmlTagRegex.ReplaceAllString(s, ""))
}
