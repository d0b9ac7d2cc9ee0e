package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/backend"
	"github.com/rhuss/palaver/pkg/capability"
	"github.com/rhuss/palaver/pkg/conversation"
	"github.com/rhuss/palaver/pkg/debug"
	"github.com/rhuss/palaver/pkg/observability"
	"github.com/rhuss/palaver/pkg/policy"
)

// DefaultTimeout bounds a completion when no timeout is configured.
const DefaultTimeout = backend.DefaultTimeout

// Orchestrator answers chat requests. It holds no per-request state and is
// safe for concurrent use.
type Orchestrator struct {
	handle   *backend.Handle
	registry *capability.Registry
	timeout  time.Duration
	recorder Recorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds each backend exchange, capability calls included.
// Values of zero or less keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRecorder replaces the default recorders. A nil recorder disables
// measurement.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New creates an Orchestrator around the base handle. The handle's own
// capabilities are ignored: each completion derives a handle exposing the
// capabilities its policy and selection allow. By default finished
// completions are recorded in Prometheus and logged through slog.
func New(handle *backend.Handle, registry *capability.Registry, opts ...Option) (*Orchestrator, error) {
	if handle == nil {
		return nil, fmt.Errorf("orchestrator: backend handle must not be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("orchestrator: capability registry must not be nil")
	}
	o := &Orchestrator{
		handle:   handle,
		registry: registry,
		timeout:  DefaultTimeout,
		recorder: MultiRecorder{PrometheusRecorder{}, LogRecorder{Logger: slog.Default()}},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.recorder == nil {
		o.recorder = RecorderFunc(func(context.Context, Measurement) {})
	}
	return o, nil
}

// Registry returns the capability registry completions select from.
func (o *Orchestrator) Registry() *capability.Registry {
	return o.registry
}

// Timeout returns the effective completion timeout.
func (o *Orchestrator) Timeout() time.Duration {
	return o.timeout
}

// Complete answers the conversation in raw under pol.
//
// When pol allows autonomous calls, selection names the capability modules
// the backend may call; an empty selection exposes every registered module.
// When it does not, no capability is exposed and selection is ignored.
//
// The returned turns follow pol.ReturnScope. Errors are *OrchestrationError.
func (o *Orchestrator) Complete(ctx context.Context, raw []api.RawTurn, pol policy.Policy, selection []string) (res *backend.Result, err error) {
	start := time.Now()
	provider := o.handle.Provider()

	ctx, span := observability.Tracer().Start(ctx, "orchestrator.Complete")
	span.SetAttributes(
		attribute.String("backend.provider", provider),
		attribute.String("backend.model", o.handle.Model()),
		attribute.Int("conversation.raw_turns", len(raw)),
		attribute.Bool("policy.allow_autonomous_calls", pol.AllowAutonomousCalls),
		attribute.String("policy.return_scope", pol.ReturnScope.String()),
	)

	observability.CompletionsInFlight.Inc()

	r := &run{state: StateIdle}
	defer func() {
		observability.CompletionsInFlight.Dec()

		m := Measurement{
			Provider: provider,
			Model:    o.handle.Model(),
			Outcome:  OutcomeSuccess,
			State:    r.state,
			Duration: time.Since(start),
			Turns:    r.turns,
			Err:      err,
		}
		if res != nil {
			m.Produced = res.Produced
			m.Rounds = res.Rounds
			m.Usage = res.Usage
		}
		if err != nil {
			var oe *OrchestrationError
			if errors.As(err, &oe) {
				m.Stage = oe.Stage
			}
			m.Outcome = OutcomeError
			if errors.Is(err, context.DeadlineExceeded) {
				m.Outcome = OutcomeTimeout
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(
			attribute.String("orchestrator.outcome", m.Outcome),
			attribute.String("orchestrator.state", m.State.String()),
		)
		if m.Stage != "" {
			span.SetAttributes(attribute.String("orchestrator.stage", string(m.Stage)))
		}
		span.End()

		o.recorder.ObserveCompletion(ctx, m)
	}()

	r.to(StateBuilding)
	if verr := pol.Validate(); verr != nil {
		return nil, r.fail(StagePolicy, verr)
	}

	conv := conversation.Build(raw)
	r.turns = conv.Len()
	if conv.IsEmpty() {
		return nil, r.fail(StageBuild, ErrEmptyConversation)
	}

	h, cerr := o.handleFor(pol, selection)
	if cerr != nil {
		return nil, r.fail(StageCapabilities, cerr)
	}
	span.SetAttributes(attribute.Int("capabilities.exposed", len(h.Capabilities())))
	r.to(StateClientReady)

	bctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	r.to(StateAwaitingBackend)
	result, berr := h.Complete(bctx, conv, pol)
	if berr != nil {
		return nil, r.fail(StageBackend, berr)
	}
	if result == nil || result.Produced == 0 {
		return nil, r.fail(StageResponse, ErrEmptyBackendResponse)
	}

	r.to(StateSucceeded)
	return result, nil
}

// handleFor derives the handle for one completion.
func (o *Orchestrator) handleFor(pol policy.Policy, selection []string) (*backend.Handle, error) {
	if !pol.AllowAutonomousCalls {
		if len(selection) > 0 {
			debug.Log("orchestrator", "autonomous calls disabled, ignoring capability selection",
				"selection", selection)
		}
		return o.handle.WithCapabilities(nil), nil
	}

	set := o.registry.All()
	if len(selection) > 0 {
		var err error
		set, err = o.registry.ActiveSet(selection)
		if err != nil {
			return nil, err
		}
	}
	return o.handle.WithCapabilities(set), nil
}

// run tracks the state of one completion.
type run struct {
	state State
	turns int
}

func (r *run) to(s State) {
	debug.Log("orchestrator", "state transition", "from", r.state.String(), "to", s.String())
	r.state = s
}

func (r *run) fail(stage Stage, err error) *OrchestrationError {
	r.to(StateFailed)
	return failed(stage, err)
}
