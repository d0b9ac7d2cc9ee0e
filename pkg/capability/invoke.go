package capability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rhuss/palaver/pkg/debug"
)

// Prometheus metrics for capability invocations.
var (
	invocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "palaver_capability_invocations_total",
			Help: "Total capability function invocations",
		},
		[]string{"capability", "function", "status"},
	)

	invocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "palaver_capability_duration_seconds",
			Help:    "Capability function invocation duration",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"capability", "function"},
	)
)

func init() {
	prometheus.MustRegister(invocationsTotal, invocationDuration)
}

// Invoke runs call against the binding's module, records metrics, and
// recovers from panics. It never returns nil: every failure, including an
// infrastructure error from the module, becomes an error Result the model
// can read.
func Invoke(ctx context.Context, b Binding, call Call) (result *Result) {
	name := b.Entry.Name
	fn := b.Function.Name
	call.Function = fn
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("capability panicked",
				"capability", name,
				"function", fn,
				"panic", rec,
			)
			result = ErrorResult(call.ID, fmt.Sprintf("internal error: capability %s panicked", b.QualifiedName()))
			invocationsTotal.WithLabelValues(name, fn, "panic").Inc()
			invocationDuration.WithLabelValues(name, fn).Observe(time.Since(start).Seconds())
		}
	}()

	debug.Log("capabilities", "invoking", "capability", name, "function", fn, "call_id", call.ID)
	debug.Trace("capabilities", "invocation arguments", "call_id", call.ID, "arguments", call.Arguments)

	res, err := b.Entry.Module.Invoke(ctx, call)
	duration := time.Since(start)

	status := "success"
	switch {
	case err != nil:
		status = "error"
		slog.Warn("capability invocation failed",
			"capability", name,
			"function", fn,
			"error", err,
		)
		res = ErrorResult(call.ID, fmt.Sprintf("error invoking %s: %v", b.QualifiedName(), err))
	case res == nil:
		status = "error"
		res = ErrorResult(call.ID, fmt.Sprintf("capability %s returned no result", b.QualifiedName()))
	case res.IsError:
		status = "capability_error"
	}
	// Modules may return shared results; stamp the call ID on a copy.
	out := *res
	out.CallID = call.ID
	res = &out

	invocationsTotal.WithLabelValues(name, fn, status).Inc()
	invocationDuration.WithLabelValues(name, fn).Observe(duration.Seconds())

	debug.Log("capabilities", "invocation complete",
		"capability", name, "function", fn, "status", status, "duration_ms", duration.Milliseconds())
	return res
}
