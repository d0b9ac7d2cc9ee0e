package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/rhuss/palaver/pkg/observability"
)

func TestPrometheusRecorder(t *testing.T) {
	counter := observability.CompletionsTotal.WithLabelValues("prom-test", OutcomeTimeout)
	before := testutil.ToFloat64(counter)

	PrometheusRecorder{}.ObserveCompletion(context.Background(), Measurement{
		Provider: "prom-test",
		Outcome:  OutcomeTimeout,
		Duration: 2 * time.Second,
	})

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
	assert.Positive(t, testutil.CollectAndCount(observability.CompletionDuration))
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	r := LogRecorder{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	r.ObserveCompletion(context.Background(), Measurement{
		Provider: "stub", Model: "m", Outcome: OutcomeSuccess, Duration: time.Millisecond, Turns: 2, Produced: 1,
	})
	r.ObserveCompletion(context.Background(), Measurement{
		Provider: "stub", Model: "m", Outcome: OutcomeError, Stage: StageBuild, Err: errors.New("no turns"),
	})

	out := buf.String()
	for _, want := range []string{"completion finished", "turns=2", "completion failed", "stage=build", `error="no turns"`} {
		assert.True(t, strings.Contains(out, want), "missing %q in:\n%s", want, out)
	}
}

func TestMultiRecorder(t *testing.T) {
	var order []string
	mr := MultiRecorder{
		RecorderFunc(func(context.Context, Measurement) { order = append(order, "a") }),
		RecorderFunc(func(context.Context, Measurement) { order = append(order, "b") }),
	}
	mr.ObserveCompletion(context.Background(), Measurement{})
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestState(t *testing.T) {
	assert.Equal(t, "awaiting_backend", StateAwaitingBackend.String())
	assert.Equal(t, "unknown", State(42).String())
}
