package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/backend"
)

type seenRequest struct {
	path   string
	apiKey string
	body   map[string]any
}

func newGeminiServer(t *testing.T, status int, respBody string) (*httptest.Server, *seenRequest) {
	t.Helper()
	seen := &seenRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.path = r.URL.Path
		seen.apiKey = r.Header.Get("x-goog-api-key")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &seen.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newTestClient(t *testing.T, endpoint string) backend.Client {
	t.Helper()
	client, err := New(backend.Config{Provider: "gemini", Endpoint: endpoint, Credential: "g-key", ModelID: "gemini-2.0-flash"})
	require.NoError(t, err)
	return client
}

func TestComplete_Text(t *testing.T) {
	srv, seen := newGeminiServer(t, http.StatusOK, `{
	  "candidates": [{"content": {"role": "model", "parts": [{"text": "4"}]}, "finishReason": "STOP"}],
	  "usageMetadata": {"promptTokenCount": 6, "candidatesTokenCount": 1, "totalTokenCount": 7}
	}`)
	client := newTestClient(t, srv.URL)

	reply, err := client.Complete(context.Background(), &backend.Request{
		Model:     "gemini-2.0-flash",
		Messages:  []backend.Message{{Role: backend.RoleUser, Content: "What is 2+2?"}},
		MaxTokens: 32,
	})
	require.NoError(t, err)

	assert.Equal(t, "4", reply.Content)
	assert.Equal(t, "STOP", reply.FinishReason)
	assert.Equal(t, api.Usage{InputTokens: 6, OutputTokens: 1, TotalTokens: 7}, reply.Usage)

	assert.True(t, strings.HasSuffix(seen.path, "/models/gemini-2.0-flash:generateContent"), "path %q", seen.path)
	assert.Equal(t, "g-key", seen.apiKey)
	contents, ok := seen.body["contents"].([]any)
	require.True(t, ok, "contents missing from body: %v", seen.body)
	assert.Len(t, contents, 1)
	assert.Equal(t, "gemini", client.Name())
}

func TestComplete_FunctionCall(t *testing.T) {
	srv, seen := newGeminiServer(t, http.StatusOK, `{
	  "candidates": [{"content": {"role": "model", "parts": [
	    {"functionCall": {"name": "weather__current", "args": {"location": "Berlin"}}}
	  ]}, "finishReason": "STOP"}]
	}`)
	client := newTestClient(t, srv.URL)

	reply, err := client.Complete(context.Background(), &backend.Request{
		Model:    "gemini-2.0-flash",
		Messages: []backend.Message{{Role: backend.RoleUser, Content: "weather?"}},
		Tools: []backend.ToolSpec{{
			Name:        "weather__current",
			Description: "current weather",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"location":{"type":"string"}}}`),
		}},
	})
	require.NoError(t, err)

	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "weather__current", reply.ToolCalls[0].Name)
	assert.JSONEq(t, `{"location":"Berlin"}`, reply.ToolCalls[0].Arguments)
	assert.Empty(t, reply.ToolCalls[0].ID)

	tools, ok := seen.body["tools"].([]any)
	require.True(t, ok, "tools missing from body: %v", seen.body)
	require.Len(t, tools, 1)
}

func TestComplete_APIErrors(t *testing.T) {
	tests := []struct {
		status   int
		wantType api.ErrorType
	}{
		{http.StatusBadRequest, api.ErrorTypeInvalidRequest},
		{http.StatusNotFound, api.ErrorTypeNotFound},
		{http.StatusTooManyRequests, api.ErrorTypeTooManyRequests},
		{http.StatusInternalServerError, api.ErrorTypeBackendError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv, _ := newGeminiServer(t, tt.status, `{"error": {"code": `+itoa(tt.status)+`, "message": "upstream says no", "status": "X"}}`)
			client := newTestClient(t, srv.URL)

			_, err := client.Complete(context.Background(), &backend.Request{
				Model:    "gemini-2.0-flash",
				Messages: []backend.Message{{Role: backend.RoleUser, Content: "hi"}},
			})
			var apiErr *api.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantType, apiErr.Type)
			assert.Equal(t, "upstream says no", apiErr.Message)
		})
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestNew_MissingKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_GENAI_USE_VERTEXAI", "")

	_, err := New(backend.Config{Provider: "gemini", ModelID: "gemini-2.0-flash"})
	var cfgErr *backend.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "credential", cfgErr.Field)
}

func TestTranslateContents(t *testing.T) {
	contents := TranslateContents([]backend.Message{
		{Role: backend.RoleUser, Content: "weather and time?"},
		{Role: backend.RoleAssistant, ToolCalls: []backend.ToolCall{
			{ID: "call_1_0", Name: "weather__current", Arguments: `{"location":"Berlin"}`},
			{ID: "call_1_1", Name: "clock__now"},
		}},
		{Role: backend.RoleTool, ToolCallID: "call_1_0", Name: "weather__current", Content: "sunny"},
		{Role: backend.RoleTool, ToolCallID: "call_1_1", Name: "clock__now", Content: "12:00"},
		{Role: backend.RoleAssistant, Content: "Sunny, noon."},
	})

	require.Len(t, contents, 4)
	assert.Equal(t, genai.RoleUser, contents[0].Role)

	model := contents[1]
	assert.Equal(t, genai.RoleModel, model.Role)
	require.Len(t, model.Parts, 2)
	assert.Equal(t, "weather__current", model.Parts[0].FunctionCall.Name)
	assert.Equal(t, "Berlin", model.Parts[0].FunctionCall.Args["location"])
	assert.Empty(t, model.Parts[1].FunctionCall.Args)

	results := contents[2]
	assert.Equal(t, genai.RoleUser, results.Role)
	require.Len(t, results.Parts, 2)
	assert.Equal(t, "clock__now", results.Parts[1].FunctionResponse.Name)
	assert.Equal(t, "12:00", results.Parts[1].FunctionResponse.Response["output"])
	assert.Equal(t, "call_1_1", results.Parts[1].FunctionResponse.ID)

	assert.Equal(t, "Sunny, noon.", contents[3].Parts[0].Text)
}

func TestTranslateResponse_Nil(t *testing.T) {
	reply := TranslateResponse(nil)
	assert.Empty(t, reply.Content)
	assert.Empty(t, reply.ToolCalls)

	reply = TranslateResponse(&genai.GenerateContentResponse{})
	assert.Empty(t, reply.Content)
}

func TestMapError_NonAPIError(t *testing.T) {
	apiErr := MapError(errors.New("dial tcp: refused"))
	assert.Equal(t, api.ErrorTypeBackendError, apiErr.Type)
}
