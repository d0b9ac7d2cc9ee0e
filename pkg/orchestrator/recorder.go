package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/observability"
)

// Completion outcomes as reported in measurements and metric labels.
const (
	OutcomeSuccess = "success"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
)

// Measurement describes one finished completion, successful or not.
type Measurement struct {
	Provider string
	Model    string
	Outcome  string
	// Stage is the failed stage; empty on success.
	Stage    Stage
	State    State
	Duration time.Duration
	Turns    int
	Produced int
	Rounds   int
	Usage    api.Usage
	Err      error
}

// Recorder observes finished completions. ObserveCompletion is called
// exactly once per Complete call, on every exit path.
type Recorder interface {
	ObserveCompletion(ctx context.Context, m Measurement)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, m Measurement)

func (f RecorderFunc) ObserveCompletion(ctx context.Context, m Measurement) {
	f(ctx, m)
}

// MultiRecorder fans a measurement out to several recorders in order.
type MultiRecorder []Recorder

func (mr MultiRecorder) ObserveCompletion(ctx context.Context, m Measurement) {
	for _, r := range mr {
		r.ObserveCompletion(ctx, m)
	}
}

// PrometheusRecorder feeds the completion counters and duration histogram.
type PrometheusRecorder struct{}

func (PrometheusRecorder) ObserveCompletion(_ context.Context, m Measurement) {
	observability.CompletionsTotal.WithLabelValues(m.Provider, m.Outcome).Inc()
	observability.CompletionDuration.WithLabelValues(m.Provider, m.Outcome).Observe(m.Duration.Seconds())
}

// LogRecorder writes one log line per completion.
type LogRecorder struct {
	Logger *slog.Logger
}

func (r LogRecorder) ObserveCompletion(ctx context.Context, m Measurement) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{
		slog.String("provider", m.Provider),
		slog.String("model", m.Model),
		slog.String("outcome", m.Outcome),
		slog.Duration("duration", m.Duration),
		slog.Int("turns", m.Turns),
		slog.Int("produced", m.Produced),
		slog.Int("rounds", m.Rounds),
	}
	if m.Err != nil {
		attrs = append(attrs,
			slog.String("stage", string(m.Stage)),
			slog.String("error", m.Err.Error()),
		)
		logger.LogAttrs(ctx, slog.LevelWarn, "completion failed", attrs...)
		return
	}
	attrs = append(attrs, slog.Int("total_tokens", m.Usage.TotalTokens))
	logger.LogAttrs(ctx, slog.LevelInfo, "completion finished", attrs...)
}
