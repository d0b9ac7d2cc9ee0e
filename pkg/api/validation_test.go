package api

import (
	"strings"
	"testing"
)

func TestValidateChatRequest(t *testing.T) {
	cfg := ValidationConfig{MaxMessages: 3, MaxContentSize: 10, MaxCapabilities: 2}

	tests := []struct {
		name      string
		req       ChatRequest
		wantParam string
	}{
		{
			name: "valid",
			req:  ChatRequest{Messages: []RawTurn{{Role: "user", Content: "hi"}}},
		},
		{
			name: "empty messages pass through",
			req:  ChatRequest{},
		},
		{
			name: "unknown roles pass through",
			req:  ChatRequest{Messages: []RawTurn{{Role: "system", Content: "x"}}},
		},
		{
			name:      "too many messages",
			req:       ChatRequest{Messages: make([]RawTurn, 4)},
			wantParam: "messages",
		},
		{
			name:      "content too large",
			req:       ChatRequest{Messages: []RawTurn{{Role: "user", Content: "ok"}, {Role: "user", Content: strings.Repeat("a", 11)}}},
			wantParam: "messages[1].content",
		},
		{
			name:      "too many capabilities",
			req:       ChatRequest{Capabilities: []string{"a", "b", "c"}},
			wantParam: "capabilities",
		},
		{
			name:      "bad return scope",
			req:       ChatRequest{ReturnScope: "everything"},
			wantParam: "return_scope",
		},
		{
			name: "known return scope",
			req:  ChatRequest{ReturnScope: "full_history"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChatRequest(&tt.req, cfg)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error for param %q", tt.wantParam)
			}
			if err.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", err.Param, tt.wantParam)
			}
			if err.Type != ErrorTypeInvalidRequest {
				t.Errorf("Type = %q, want %q", err.Type, ErrorTypeInvalidRequest)
			}
		})
	}
}
