// Package api defines the wire types shared by the chat orchestrator and its
// HTTP façade: conversation turns as callers send them, admitted turns as the
// orchestrator returns them, and the structured error type every layer uses.
//
// The package performs no I/O.
//
// Core types:
//   - [RawTurn]: unvalidated caller input, any role string and any content
//   - [Turn]: an admitted turn with a known [Role] and non-blank content
//   - [ChatRequest] / [ChatResponse]: the request and response bodies of POST /v1/chat
//   - [APIError]: structured error with type, code, param, and message
package api
