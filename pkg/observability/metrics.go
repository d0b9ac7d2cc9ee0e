// Package observability provides Prometheus metrics, HTTP middleware and
// OpenTelemetry tracing for the palaver chat service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palaver_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "palaver_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// CompletionsInFlight tracks completions currently waiting on the backend.
	CompletionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "palaver_completions_in_flight",
			Help: "Completions in flight",
		},
	)

	// CompletionsTotal counts orchestrated completions by provider and outcome.
	CompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palaver_completions_total",
			Help: "Completions",
		},
		[]string{"provider", "outcome"},
	)

	// CompletionDuration records the wall-clock time of a whole completion,
	// from conversation building to the final reply.
	CompletionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "palaver_completion_duration_seconds",
			Help:    "Completion duration",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "outcome"},
	)

	// BackendRequestsTotal counts round-trips sent to the language-model backend.
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palaver_backend_requests_total",
			Help: "Backend requests",
		},
		[]string{"provider", "model", "status"},
	)

	// BackendLatency records backend round-trip latency in seconds.
	BackendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "palaver_backend_latency_seconds",
			Help:    "Backend latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// BackendTokensTotal counts tokens processed by direction (input/output).
	BackendTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palaver_backend_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		CompletionsInFlight,
		CompletionsTotal,
		CompletionDuration,
		BackendRequestsTotal,
		BackendLatency,
		BackendTokensTotal,
	)
}

// RecordBackendRequest records one backend round-trip.
func RecordBackendRequest(provider, model, status string, seconds float64, inputTokens, outputTokens int) {
	BackendRequestsTotal.WithLabelValues(provider, model, status).Inc()
	BackendLatency.WithLabelValues(provider, model).Observe(seconds)
	if inputTokens > 0 {
		BackendTokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		BackendTokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}
