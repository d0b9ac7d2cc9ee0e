package orchestrator

import (
	"context"
	"time"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/policy"
	"github.com/rhuss/palaver/pkg/transport"
)

var (
	_ transport.ChatCompleter    = (*ChatHandler)(nil)
	_ transport.CapabilityLister = (*ChatHandler)(nil)
)

// ChatHandler serves chat requests from the transport layer. Requests may
// override the default policy's AllowAutonomousCalls and ReturnScope; the
// call budget always comes from the default.
type ChatHandler struct {
	orch   *Orchestrator
	policy policy.Policy
}

// NewChatHandler returns a handler applying def to every request.
func NewChatHandler(o *Orchestrator, def policy.Policy) *ChatHandler {
	return &ChatHandler{orch: o, policy: def}
}

// Complete implements transport.ChatCompleter. Errors are *api.APIError.
func (h *ChatHandler) Complete(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	pol := h.policy
	if req.AllowCapabilities != nil {
		pol.AllowAutonomousCalls = *req.AllowCapabilities
	}
	if req.ReturnScope != "" {
		scope, err := policy.ParseReturnScope(req.ReturnScope)
		if err != nil {
			return nil, api.NewInvalidRequestError("return_scope", err.Error())
		}
		pol.ReturnScope = scope
	}

	start := time.Now()
	res, err := h.orch.Complete(ctx, req.Messages, pol, req.Capabilities)
	if err != nil {
		return nil, APIErrorFor(err)
	}

	usage := res.Usage
	return &api.ChatResponse{
		ID:         api.NewChatID(),
		Object:     "chat.completion",
		Model:      res.Model,
		Messages:   res.Turns,
		Usage:      &usage,
		DurationMS: time.Since(start).Milliseconds(),
	}, nil
}

// ListCapabilities implements transport.CapabilityLister.
func (h *ChatHandler) ListCapabilities(context.Context) []api.CapabilityInfo {
	return h.orch.Registry().Describe()
}
