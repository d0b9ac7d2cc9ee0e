package backend

import (
	"github.com/rhuss/palaver/pkg/capability"
)

// DefaultMaxParallelCalls bounds how many capability calls of one round run
// at the same time.
const DefaultMaxParallelCalls = 8

// Handle is a configured backend client together with the capability set it
// exposes to the model. Handles are immutable and safe for concurrent use;
// derive narrowed handles with WithCapabilities.
type Handle struct {
	client      Client
	model       string
	maxTokens   int
	maxParallel int

	capabilities capability.Set
	tools        []ToolSpec
	bindings     map[string]capability.Binding
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithMaxTokens caps each reply. Zero leaves the backend default.
func WithMaxTokens(n int) HandleOption {
	return func(h *Handle) { h.maxTokens = n }
}

// WithMaxParallelCalls bounds concurrent capability calls within one round.
// Values below 1 run calls sequentially.
func WithMaxParallelCalls(n int) HandleOption {
	return func(h *Handle) {
		if n < 1 {
			n = 1
		}
		h.maxParallel = n
	}
}

// NewHandle wraps client in a handle with no capabilities.
func NewHandle(client Client, model string, opts ...HandleOption) *Handle {
	h := &Handle{
		client:      client,
		model:       model,
		maxParallel: DefaultMaxParallelCalls,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Provider returns the name of the underlying client.
func (h *Handle) Provider() string {
	return h.client.Name()
}

// Model returns the model identifier requests are sent with.
func (h *Handle) Model() string {
	return h.model
}

// Capabilities returns a copy of the exposed capability set.
func (h *Handle) Capabilities() capability.Set {
	return h.capabilities.Clone()
}

// Tools returns the function specs sent to the model, in order.
func (h *Handle) Tools() []ToolSpec {
	out := make([]ToolSpec, len(h.tools))
	copy(out, h.tools)
	return out
}

// WithCapabilities returns a copy of h exposing exactly set. h itself is
// not modified, so concurrent derivations from a shared base are safe.
// An empty set yields a handle that offers no functions.
func (h *Handle) WithCapabilities(set capability.Set) *Handle {
	derived := &Handle{
		client:       h.client,
		model:        h.model,
		maxTokens:    h.maxTokens,
		maxParallel:  h.maxParallel,
		capabilities: set.Clone(),
	}
	if len(set) == 0 {
		return derived
	}

	list, index := derived.capabilities.Bindings()
	derived.bindings = index
	derived.tools = make([]ToolSpec, 0, len(list))
	for _, b := range list {
		params := b.Function.Parameters
		if len(params) == 0 {
			params = capability.EmptyParameters
		}
		derived.tools = append(derived.tools, ToolSpec{
			Name:        b.QualifiedName(),
			Description: b.Function.Description,
			Parameters:  params,
		})
	}
	return derived
}

// Close releases the underlying client. Derived handles share the client,
// so only the base handle should be closed.
func (h *Handle) Close() error {
	return h.client.Close()
}
