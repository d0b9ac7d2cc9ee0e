// Package gemini is the backend adapter for Google Gemini models, built on
// the Google GenAI SDK.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/backend"
	"github.com/rhuss/palaver/pkg/debug"
)

// Client calls GenerateContent on the Gemini API.
type Client struct {
	client *genai.Client
}

var _ backend.Client = (*Client)(nil)

// New is the backend.Constructor for the "gemini" provider. An empty
// credential falls back to the GOOGLE_API_KEY / GEMINI_API_KEY environment
// variables. Endpoint overrides the Gemini API base URL.
func New(cfg backend.Config) (backend.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.Credential,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout()},
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions.BaseURL = strings.TrimRight(cfg.Endpoint, "/") + "/"
	}
	if cfg.APIVersion != "" {
		cc.HTTPOptions.APIVersion = cfg.APIVersion
	}

	// NewClient validates the config only; it does not contact the API.
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		// The SDK error embeds the client config, API key included.
		msg := "invalid Gemini client configuration"
		if cfg.Credential == "" {
			msg = "no API key configured and GOOGLE_API_KEY/GEMINI_API_KEY unset"
		}
		return nil, &backend.ConfigurationError{Field: "credential", Message: msg}
	}
	return &Client{client: client}, nil
}

// Name returns "gemini".
func (c *Client) Name() string {
	return "gemini"
}

// Complete performs one GenerateContent round-trip.
func (c *Client) Complete(ctx context.Context, req *backend.Request) (*backend.Reply, error) {
	contents := TranslateContents(req.Messages)
	config := &genai.GenerateContentConfig{}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: TranslateTools(req.Tools)}}
	}

	debug.Log("backend", "gemini request", "model", req.Model, "contents", len(contents), "tools", len(req.Tools))

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, MapError(err)
	}
	return TranslateResponse(resp), nil
}

// Close is a no-op; the SDK client holds no resources beyond its HTTP client.
func (c *Client) Close() error {
	return nil
}

// TranslateContents converts backend messages into Gemini contents. Tool
// results become function responses in a user content, keyed by function
// name, and adjacent contents of the same role are merged.
func TranslateContents(msgs []backend.Message) []*genai.Content {
	var out []*genai.Content
	appendParts := func(role string, parts []*genai.Part) {
		if len(parts) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			return
		}
		out = append(out, genai.NewContentFromParts(parts, genai.Role(role)))
	}

	for _, m := range msgs {
		switch m.Role {
		case backend.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				p := genai.NewPartFromFunctionCall(tc.Name, decodeArgs(tc.Arguments))
				p.FunctionCall.ID = tc.ID
				parts = append(parts, p)
			}
			appendParts(genai.RoleModel, parts)
		case backend.RoleTool:
			p := genai.NewPartFromFunctionResponse(m.Name, map[string]any{"output": m.Content})
			p.FunctionResponse.ID = m.ToolCallID
			appendParts(genai.RoleUser, []*genai.Part{p})
		default:
			if m.Content != "" {
				appendParts(genai.RoleUser, []*genai.Part{genai.NewPartFromText(m.Content)})
			}
		}
	}
	return out
}

// TranslateTools converts tool specs into function declarations. Parameter
// schemas are passed through as JSON Schema.
func TranslateTools(tools []backend.ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		d := &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		}
		if len(t.Parameters) > 0 {
			var schema map[string]any
			if err := json.Unmarshal(t.Parameters, &schema); err == nil {
				d.ParametersJsonSchema = schema
			}
		}
		decls = append(decls, d)
	}
	return decls
}

// TranslateResponse converts the first candidate into a Reply.
func TranslateResponse(resp *genai.GenerateContentResponse) *backend.Reply {
	reply := &backend.Reply{}
	if resp == nil {
		return reply
	}
	if u := resp.UsageMetadata; u != nil {
		reply.Usage = api.Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return reply
	}

	cand := resp.Candidates[0]
	reply.FinishReason = string(cand.FinishReason)

	var text strings.Builder
	for _, p := range cand.Content.Parts {
		if p == nil {
			continue
		}
		if p.Text != "" && !p.Thought {
			text.WriteString(p.Text)
		}
		if fc := p.FunctionCall; fc != nil {
			args, err := json.Marshal(fc.Args)
			if err != nil || fc.Args == nil {
				args = []byte("{}")
			}
			reply.ToolCalls = append(reply.ToolCalls, backend.ToolCall{
				ID:        fc.ID,
				Name:      fc.Name,
				Arguments: string(args),
			})
		}
	}
	reply.Content = text.String()
	return reply
}

// MapError converts a GenAI SDK error into an APIError.
func MapError(err error) *api.APIError {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return api.NewBackendError("gemini error: " + err.Error())
	}
	msg := apiErr.Message
	if msg == "" {
		msg = fmt.Sprintf("gemini error (HTTP %d)", apiErr.Code)
	}
	switch {
	case apiErr.Code == http.StatusBadRequest:
		return api.NewInvalidRequestError("", msg)
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return api.NewServerError(msg)
	case apiErr.Code == http.StatusNotFound:
		return api.NewNotFoundError(msg)
	case apiErr.Code == http.StatusTooManyRequests:
		return api.NewTooManyRequestsError(msg)
	default:
		return api.NewBackendError(msg)
	}
}

func decodeArgs(args string) map[string]any {
	out := map[string]any{}
	if strings.TrimSpace(args) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(args), &out); err != nil {
		return map[string]any{}
	}
	return out
}
