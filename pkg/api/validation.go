package api

import "fmt"

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxMessages     int
	MaxContentSize  int
	MaxCapabilities int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxMessages:     1000,
		MaxContentSize:  1 * 1024 * 1024, // 1MB per turn
		MaxCapabilities: 64,
	}
}

// ValidateChatRequest checks the size limits of a ChatRequest. It returns an
// *APIError describing the first violation, or nil.
//
// Turn contents and roles are deliberately not checked here. Malformed turns
// are dropped when the conversation is built, and a conversation with nothing
// left is reported by the orchestrator.
func ValidateChatRequest(req *ChatRequest, cfg ValidationConfig) *APIError {
	if cfg.MaxMessages > 0 && len(req.Messages) > cfg.MaxMessages {
		return NewInvalidRequestError("messages",
			fmt.Sprintf("messages exceeds maximum of %d turns", cfg.MaxMessages))
	}

	if cfg.MaxContentSize > 0 {
		for i, m := range req.Messages {
			if len(m.Content) > cfg.MaxContentSize {
				return NewInvalidRequestError(fmt.Sprintf("messages[%d].content", i),
					fmt.Sprintf("content exceeds maximum size of %d bytes", cfg.MaxContentSize))
			}
		}
	}

	if cfg.MaxCapabilities > 0 && len(req.Capabilities) > cfg.MaxCapabilities {
		return NewInvalidRequestError("capabilities",
			fmt.Sprintf("capabilities exceeds maximum of %d", cfg.MaxCapabilities))
	}

	switch req.ReturnScope {
	case "", "full_history", "new_turns_only":
	default:
		return NewInvalidRequestError("return_scope",
			fmt.Sprintf("unknown return_scope %q", req.ReturnScope))
	}

	return nil
}
