package openaicompat

import (
	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/backend"
)

// TranslateToChat converts a backend Request into a ChatCompletionRequest.
func TranslateToChat(req *backend.Request) ChatCompletionRequest {
	cr := ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]ChatMessage, 0, len(req.Messages)),
		N:        1,
	}
	if req.MaxTokens > 0 {
		n := req.MaxTokens
		cr.MaxTokens = &n
	}

	for _, m := range req.Messages {
		cm := ChatMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		// An assistant message that only calls tools has null content.
		if m.Content == "" && len(m.ToolCalls) > 0 {
			cm.Content = nil
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, ChatToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: ChatFunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		cr.Messages = append(cr.Messages, cm)
	}

	for _, t := range req.Tools {
		cr.Tools = append(cr.Tools, ChatTool{
			Type: "function",
			Function: ChatFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	return cr
}

// TranslateResponse converts a ChatCompletionResponse into a backend Reply.
// Only choices[0] is used. A response without choices yields an empty reply.
func TranslateResponse(resp *ChatCompletionResponse) *backend.Reply {
	reply := &backend.Reply{}

	if resp.Usage != nil {
		reply.Usage = api.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}

	if len(resp.Choices) == 0 {
		return reply
	}

	choice := resp.Choices[0]
	reply.FinishReason = choice.FinishReason
	reply.Content = ExtractContentString(choice.Message.Content)

	for _, tc := range choice.Message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, backend.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return reply
}

// ExtractContentString returns content when it is a plain string. Null
// content, or content in array form, yields "".
func ExtractContentString(content any) string {
	if content == nil {
		return ""
	}
	switch v := content.(type) {
	case string:
		return v
	default:
		return ""
	}
}
