package transport

import (
	"context"

	"github.com/rhuss/palaver/pkg/api"
)

// ChatCompleter answers a chat request. Errors returned to the transport
// should be *api.APIError; anything else is reported as a server error.
type ChatCompleter interface {
	Complete(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)
}

// ChatCompleterFunc is an adapter that allows using an ordinary function
// as a ChatCompleter.
type ChatCompleterFunc func(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)

// Complete calls f(ctx, req).
func (f ChatCompleterFunc) Complete(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	return f(ctx, req)
}

// CapabilityLister describes the capability modules a chat request may
// select.
type CapabilityLister interface {
	ListCapabilities(ctx context.Context) []api.CapabilityInfo
}
