// Package transport defines the handler interfaces and middleware chain for
// the palaver HTTP transport.
//
// The transport layer sits between API clients and the chat orchestrator.
// It decodes requests into the types of pkg/api, hands them to a
// ChatCompleter and encodes the result or the error.
//
// # Handler Interfaces
//
//   - ChatCompleter answers one chat request.
//   - CapabilityLister describes the registered capability modules.
//
// # Middleware
//
// Middleware wraps a ChatCompleter with cross-cutting concerns. Built-in
// middleware provides panic recovery, request ID assignment (X-Request-ID)
// and structured logging via log/slog.
package transport
