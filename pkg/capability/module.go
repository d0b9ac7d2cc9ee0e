package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
)

// Module is a named unit of capability exposing invocable functions.
type Module interface {
	// Description is a one-line summary shown in capability listings.
	Description() string

	// Functions returns the functions this module exposes. The result must
	// be stable for the lifetime of the module.
	Functions() []Function

	// Invoke runs one function call. A returned error is an infrastructure
	// failure; a Result with IsError set is a failure the model should see
	// and may recover from. Implementations must honor ctx cancellation.
	Invoke(ctx context.Context, call Call) (*Result, error)
}

// Function describes one invocable function of a module.
type Function struct {
	// Name is the function name, unique within its module.
	Name string

	// Description tells the model what the function does.
	Description string

	// Parameters is a JSON Schema object describing the arguments.
	Parameters json.RawMessage
}

// Call is a model's request to invoke a function.
type Call struct {
	// ID is the call identifier assigned by the backend (e.g. "call_abc123").
	ID string

	// Function is the module-local function name.
	Function string

	// Arguments is the JSON-encoded arguments object.
	Arguments string
}

// Result is the output of one function call.
type Result struct {
	// CallID matches the originating Call.ID.
	CallID string

	// Output is the text fed back to the model.
	Output string

	// IsError indicates that Output is an error message.
	IsError bool
}

// ErrorResult builds a Result reporting msg as an error.
func ErrorResult(callID, msg string) *Result {
	return &Result{CallID: callID, Output: msg, IsError: true}
}

// MetricsProvider is implemented by modules that export their own
// Prometheus collectors. The registry registers them on Register.
type MetricsProvider interface {
	Collectors() []prometheus.Collector
}

// EmptyParameters is the schema of a function that takes no arguments.
var EmptyParameters = json.RawMessage(`{"type":"object","properties":{}}`)

func closeModule(m Module) error {
	if c, ok := m.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// DecodeArguments unmarshals call.Arguments into v. Empty arguments decode
// as an empty object.
func DecodeArguments(call Call, v any) error {
	args := call.Arguments
	if args == "" {
		args = "{}"
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
