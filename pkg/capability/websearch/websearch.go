// Package websearch is a capability module that searches the web through a
// pluggable backend. SearXNG is the only backend shipped.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rhuss/palaver/pkg/capability"
)

const (
	fnSearch = "search"
	fnNews   = "news"
)

var searchParams = json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"Search query"},"max_results":{"type":"integer","minimum":1,"maximum":20}},"required":["query"]}`)

// Config configures the module.
type Config struct {
	Backend    string // default "searxng"
	URL        string
	MaxResults int // default 5
	Language   string
	HTTPClient *http.Client
}

// Module implements capability.Module and capability.MetricsProvider.
type Module struct {
	adapter    SearchAdapter
	maxResults int
	language   string
	backend    string
	queries    *prometheus.CounterVec
	results    *prometheus.HistogramVec
}

var (
	_ capability.Module          = (*Module)(nil)
	_ capability.MetricsProvider = (*Module)(nil)
)

// New creates the module from cfg.
func New(cfg Config) (*Module, error) {
	if cfg.Backend == "" {
		cfg.Backend = "searxng"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}

	var adapter SearchAdapter
	switch cfg.Backend {
	case "searxng":
		if cfg.URL == "" {
			return nil, fmt.Errorf("websearch: url is required for the searxng backend")
		}
		adapter = NewSearXNG(cfg.URL, cfg.HTTPClient)
	default:
		return nil, fmt.Errorf("websearch: unknown backend %q", cfg.Backend)
	}

	return NewWithAdapter(adapter, cfg), nil
}

// NewWithAdapter creates the module around an existing adapter.
func NewWithAdapter(adapter SearchAdapter, cfg Config) *Module {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &Module{
		adapter:    adapter,
		maxResults: cfg.MaxResults,
		language:   cfg.Language,
		backend:    cfg.Backend,
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "palaver_websearch_queries_total",
				Help: "Total web search queries",
			},
			[]string{"backend", "category", "status"},
		),
		results: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "palaver_websearch_results_returned",
				Help:    "Number of web search results returned",
				Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
			},
			[]string{"backend"},
		),
	}
}

func (m *Module) Description() string {
	return "Web search for current information"
}

func (m *Module) Functions() []capability.Function {
	return []capability.Function{
		{Name: fnSearch, Description: "Search the web for current information", Parameters: searchParams},
		{Name: fnNews, Description: "Search recent news articles", Parameters: searchParams},
	}
}

func (m *Module) Invoke(ctx context.Context, call capability.Call) (*capability.Result, error) {
	category := "general"
	switch call.Function {
	case fnSearch:
	case fnNews:
		category = "news"
	default:
		return capability.ErrorResult(call.ID, fmt.Sprintf("unknown function %q", call.Function)), nil
	}

	var args struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}
	if err := capability.DecodeArguments(call, &args); err != nil {
		m.queries.WithLabelValues(m.backend, category, "error").Inc()
		return capability.ErrorResult(call.ID, err.Error()), nil
	}
	if strings.TrimSpace(args.Query) == "" {
		m.queries.WithLabelValues(m.backend, category, "error").Inc()
		return capability.ErrorResult(call.ID, "query must not be empty"), nil
	}

	limit := m.maxResults
	if args.MaxResults > 0 && args.MaxResults < limit {
		limit = args.MaxResults
	}

	results, err := m.adapter.Search(ctx, Query{
		Text:       args.Query,
		Category:   category,
		Language:   m.language,
		MaxResults: limit,
	})
	if err != nil {
		m.queries.WithLabelValues(m.backend, category, "error").Inc()
		return capability.ErrorResult(call.ID, fmt.Sprintf("search failed: %v", err)), nil
	}

	m.queries.WithLabelValues(m.backend, category, "success").Inc()
	m.results.WithLabelValues(m.backend).Observe(float64(len(results)))

	return &capability.Result{CallID: call.ID, Output: formatResults(args.Query, results)}, nil
}

// Collectors returns the module's Prometheus metrics.
func (m *Module) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.queries, m.results}
}

// formatResults builds a human-readable text block from search results.
func formatResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   URL: %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return b.String()
}
