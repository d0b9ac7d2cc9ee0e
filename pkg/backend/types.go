package backend

import (
	"context"
	"encoding/json"

	"github.com/rhuss/palaver/pkg/api"
)

// MessageRole is the author of a message exchanged with the backend.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is one entry of the backend-facing conversation. Assistant
// messages may carry tool calls; tool messages carry the result of the call
// named by ToolCallID.
type Message struct {
	Role       MessageRole
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string

	// Name is the function name a tool message answers. Some backends
	// (Gemini) key function responses by name instead of by call id.
	Name string
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolSpec describes one function offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Request is a single round-trip to the backend.
type Request struct {
	Model    string
	Messages []Message
	Tools    []ToolSpec

	// MaxTokens caps the reply length. Zero leaves the backend default.
	MaxTokens int
}

// Reply is the backend's answer to one Request.
type Reply struct {
	Content      string
	ToolCalls    []ToolCall
	Usage        api.Usage
	FinishReason string
}

// Client performs one round-trip against a language-model backend.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Client interface {
	// Name returns the provider identifier (e.g., "openai", "bedrock").
	Name() string

	// Complete sends req and waits for the reply. It must return promptly
	// once ctx is done.
	Complete(ctx context.Context, req *Request) (*Reply, error)

	// Close releases client resources (HTTP connections, SDK clients).
	Close() error
}

// MessagesFromTurns converts admitted conversation turns into backend messages.
func MessagesFromTurns(turns []api.Turn) []Message {
	msgs := make([]Message, len(turns))
	for i, t := range turns {
		role := RoleUser
		if t.Role == api.RoleAssistant {
			role = RoleAssistant
		}
		msgs[i] = Message{Role: role, Content: t.Content}
	}
	return msgs
}
