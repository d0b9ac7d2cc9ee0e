package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/debug"
	"github.com/rhuss/palaver/pkg/transport"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Adapter serves the chat API over HTTP.
// It routes requests to the appropriate handler and serializes responses.
type Adapter struct {
	completer transport.ChatCompleter
	lister    transport.CapabilityLister // nil disables GET /v1/capabilities
	inflight  *transport.InFlightRegistry
	mux       *http.ServeMux
	config    Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
	Validation  api.ValidationConfig
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
		Validation:  api.DefaultValidationConfig(),
	}
}

// NewAdapter creates an HTTP adapter around completer. The lister is
// optional. Middleware is applied to the completer in the given order.
func NewAdapter(completer transport.ChatCompleter, lister transport.CapabilityLister, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		completer = transport.Chain(middlewares...)(completer)
	}

	a := &Adapter{
		completer: completer,
		lister:    lister,
		inflight:  transport.NewInFlightRegistry(),
		mux:       http.NewServeMux(),
		config:    cfg,
	}

	a.mux.HandleFunc("POST /v1/chat", a.handleChat)
	a.mux.HandleFunc("GET /v1/capabilities", a.handleListCapabilities)

	return a
}

// Handle registers an additional route on the adapter's mux, so that every
// route shares one ServeMux and reports its pattern to the metrics
// middleware.
func (a *Adapter) Handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, h)
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest.
func (a *Adapter) Handler() http.Handler {
	return a.mux
}

// InFlight returns the registry of chat requests still being answered.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// handleChat handles POST /v1/chat.
func (a *Adapter) handleChat(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = api.NewRequestID()
	}
	w.Header().Set(RequestIDHeader, requestID)

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}

	if apiErr := api.ValidateChatRequest(&req, a.config.Validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	ctx, cancel := context.WithCancel(transport.ContextWithRequestID(r.Context(), requestID))
	defer cancel()
	// Client-supplied IDs need not be unique, so in-flight entries get their own key.
	key := api.NewRequestID()
	a.inflight.Register(key, cancel)
	defer a.inflight.Remove(key)

	resp, err := a.completer.Complete(ctx, &req)
	if err != nil {
		debug.Log("transport", "chat request failed", "request_id", requestID, "error", err)
		transport.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListCapabilities handles GET /v1/capabilities.
func (a *Adapter) handleListCapabilities(w http.ResponseWriter, r *http.Request) {
	list := api.CapabilityList{Object: "list", Data: []api.CapabilityInfo{}}
	if a.lister != nil {
		if infos := a.lister.ListCapabilities(r.Context()); infos != nil {
			list.Data = infos
		}
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
