package bedrock

import (
	"encoding/json"
	"strings"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/backend"
)

// DefaultMaxTokens is sent when the request does not cap the reply; the
// Messages API requires max_tokens.
const DefaultMaxTokens = 4096

var emptyObject = json.RawMessage(`{}`)

// TranslateRequest converts a backend Request into an Anthropic Messages
// body. Adjacent messages of the same role are merged, because the
// Messages API requires user and assistant turns to alternate; tool results
// travel as tool_result blocks in a user message.
func TranslateRequest(req *backend.Request) MessagesRequest {
	mr := MessagesRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        req.MaxTokens,
	}
	if mr.MaxTokens <= 0 {
		mr.MaxTokens = DefaultMaxTokens
	}

	for _, m := range req.Messages {
		role, blocks := translateMessage(m)
		if len(blocks) == 0 {
			continue
		}
		if n := len(mr.Messages); n > 0 && mr.Messages[n-1].Role == role {
			mr.Messages[n-1].Content = append(mr.Messages[n-1].Content, blocks...)
			continue
		}
		mr.Messages = append(mr.Messages, Message{Role: role, Content: blocks})
	}

	for _, t := range req.Tools {
		schema := t.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		mr.Tools = append(mr.Tools, ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return mr
}

func translateMessage(m backend.Message) (string, []ContentBlock) {
	switch m.Role {
	case backend.RoleTool:
		return "user", []ContentBlock{{
			Type:      "tool_result",
			ToolUseID: m.ToolCallID,
			Content:   m.Content,
		}}
	case backend.RoleAssistant:
		var blocks []ContentBlock
		if m.Content != "" {
			blocks = append(blocks, ContentBlock{Type: "text", Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			blocks = append(blocks, ContentBlock{
				Type:  "tool_use",
				ID:    tc.ID,
				Name:  tc.Name,
				Input: toolInput(tc.Arguments),
			})
		}
		return "assistant", blocks
	default:
		if m.Content == "" {
			return "user", nil
		}
		return "user", []ContentBlock{{Type: "text", Text: m.Content}}
	}
}

// toolInput returns arguments as a JSON object, or {} when they are not one.
func toolInput(args string) json.RawMessage {
	trimmed := strings.TrimSpace(args)
	if !strings.HasPrefix(trimmed, "{") || !json.Valid([]byte(trimmed)) {
		return emptyObject
	}
	return json.RawMessage(trimmed)
}

// TranslateResponse converts an Anthropic Messages response into a Reply.
// Text blocks are concatenated; tool_use blocks become tool calls.
func TranslateResponse(resp *MessagesResponse) *backend.Reply {
	reply := &backend.Reply{
		FinishReason: resp.StopReason,
		Usage: api.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}

	var text strings.Builder
	for _, b := range resp.Content {
		switch b.Type {
		case "text":
			text.WriteString(b.Text)
		case "tool_use":
			args := string(b.Input)
			if args == "" {
				args = "{}"
			}
			reply.ToolCalls = append(reply.ToolCalls, backend.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}
	reply.Content = text.String()
	return reply
}
