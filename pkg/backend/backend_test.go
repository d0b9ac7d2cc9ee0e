package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/palaver/pkg/api"
	"github.com/rhuss/palaver/pkg/capability"
	"github.com/rhuss/palaver/pkg/conversation"
	"github.com/rhuss/palaver/pkg/policy"
)

// scriptedClient replays replies in order and records every request.
type scriptedClient struct {
	mu       sync.Mutex
	replies  []*Reply
	err      error
	requests []*Request
	block    bool
}

func (c *scriptedClient) Name() string { return "scripted" }
func (c *scriptedClient) Close() error { return nil }

func (c *scriptedClient) Complete(ctx context.Context, req *Request) (*Reply, error) {
	c.mu.Lock()
	cp := *req
	cp.Messages = append([]Message(nil), req.Messages...)
	cp.Tools = append([]ToolSpec(nil), req.Tools...)
	c.requests = append(c.requests, &cp)
	n := len(c.requests)
	c.mu.Unlock()

	if c.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if c.err != nil {
		return nil, c.err
	}
	if n > len(c.replies) {
		return &Reply{Content: "done"}, nil
	}
	return c.replies[n-1], nil
}

func (c *scriptedClient) recorded() []*Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Request(nil), c.requests...)
}

// funcModule serves its functions through a single callback.
type funcModule struct {
	names []string
	fn    func(ctx context.Context, call capability.Call) (*capability.Result, error)
}

func (m *funcModule) Description() string { return "test module" }

func (m *funcModule) Functions() []capability.Function {
	out := make([]capability.Function, len(m.names))
	for i, n := range m.names {
		out[i] = capability.Function{Name: n, Description: n + " function"}
	}
	return out
}

func (m *funcModule) Invoke(ctx context.Context, call capability.Call) (*capability.Result, error) {
	return m.fn(ctx, call)
}

func echoModule(names ...string) *funcModule {
	return &funcModule{names: names, fn: func(_ context.Context, call capability.Call) (*capability.Result, error) {
		return &capability.Result{Output: call.Function + ":" + call.Arguments}, nil
	}}
}

func userConv(text string) *conversation.Context {
	return conversation.Build([]api.RawTurn{{Role: "user", Content: text}})
}

func autoPolicy() policy.Policy {
	return policy.Policy{AllowAutonomousCalls: true, ReturnScope: policy.NewTurnsOnly, MaxAutonomousCalls: 5}
}

func TestFactoryBuild(t *testing.T) {
	f := NewFactory()
	f.RegisterProvider("stub", func(cfg Config) (Client, error) {
		return &scriptedClient{}, nil
	})

	h, err := f.Build(Config{Provider: "Stub", ModelID: "m1", Endpoint: "http://localhost:8000"})
	require.NoError(t, err)
	assert.Equal(t, "scripted", h.Provider())
	assert.Equal(t, "m1", h.Model())
	assert.Empty(t, h.Capabilities())
	assert.Empty(t, h.Tools())
}

func TestFactoryBuild_ConfigurationErrors(t *testing.T) {
	f := NewFactory()
	f.RegisterProvider("stub", func(cfg Config) (Client, error) {
		if cfg.Credential == "bad" {
			return nil, &ConfigurationError{Field: "credential", Message: "rejected"}
		}
		if cfg.Credential == "plain" {
			return nil, errors.New("plain failure")
		}
		return &scriptedClient{}, nil
	})

	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"empty model", Config{Provider: "stub", Endpoint: "http://x"}, "model_id"},
		{"blank model", Config{Provider: "stub", ModelID: "  "}, "model_id"},
		{"bad scheme", Config{Provider: "stub", ModelID: "m", Endpoint: "ftp://x"}, "endpoint"},
		{"no host", Config{Provider: "stub", ModelID: "m", Endpoint: "http://"}, "endpoint"},
		{"malformed", Config{Provider: "stub", ModelID: "m", Endpoint: "http://[::1"}, "endpoint"},
		{"unknown provider", Config{Provider: "nope", ModelID: "m"}, "provider"},
		{"negative max tokens", Config{Provider: "stub", ModelID: "m", MaxTokens: -1}, "max_tokens"},
		{"constructor config error", Config{Provider: "stub", ModelID: "m", Credential: "bad"}, "credential"},
		{"constructor plain error", Config{Provider: "stub", ModelID: "m", Credential: "plain"}, "provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Build(tt.cfg)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestRequireEndpoint(t *testing.T) {
	var cfgErr *ConfigurationError
	require.ErrorAs(t, Config{}.RequireEndpoint(), &cfgErr)
	assert.Equal(t, "endpoint", cfgErr.Field)
	assert.NoError(t, Config{Endpoint: "https://example.com/v1"}.RequireEndpoint())
}

func TestFactoryProviders(t *testing.T) {
	f := NewFactory()
	f.RegisterProvider("b", nil)
	f.RegisterProvider("A", nil)
	assert.Equal(t, []string{"a", "b"}, f.Providers())
}

func TestWithCapabilities_DoesNotMutateBase(t *testing.T) {
	base := NewHandle(&scriptedClient{}, "m")
	set := capability.Set{
		{Name: "clock", Module: echoModule("now", "today")},
		{Name: "geo", Module: echoModule("search")},
	}

	derived := NewFactory().WithCapabilities(base, set)

	assert.Empty(t, base.Tools())
	assert.Empty(t, base.Capabilities())
	assert.Equal(t, []string{"clock", "geo"}, derived.Capabilities().Names())

	tools := derived.Tools()
	require.Len(t, tools, 3)
	assert.Equal(t, "clock__now", tools[0].Name)
	assert.Equal(t, "clock__today", tools[1].Name)
	assert.Equal(t, "geo__search", tools[2].Name)
	assert.JSONEq(t, string(capability.EmptyParameters), string(tools[0].Parameters))

	// Mutating the caller's set afterwards must not leak into the handle.
	set[0].Name = "changed"
	assert.Equal(t, "clock", derived.Capabilities()[0].Name)
}

func TestWithCapabilities_ConcurrentDerivation(t *testing.T) {
	base := NewHandle(&scriptedClient{}, "m")
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("mod%d", i)
			h := base.WithCapabilities(capability.Set{{Name: name, Module: echoModule("f")}})
			if got := h.Tools()[0].Name; got != name+"__f" {
				t.Errorf("tool name = %q, want %q", got, name+"__f")
			}
		}()
	}
	wg.Wait()
	assert.Empty(t, base.Tools())
}

func TestComplete_TextAnswer(t *testing.T) {
	client := &scriptedClient{replies: []*Reply{
		{Content: " 4 ", Usage: api.Usage{InputTokens: 10, OutputTokens: 1, TotalTokens: 11}},
	}}
	h := NewHandle(client, "m")

	res, err := h.Complete(context.Background(), userConv("What is 2+2?"), autoPolicy())
	require.NoError(t, err)

	assert.Equal(t, []api.Turn{{Role: api.RoleAssistant, Content: "4"}}, res.Turns)
	assert.Equal(t, 1, res.Produced)
	assert.Equal(t, 0, res.Rounds)
	assert.Equal(t, 11, res.Usage.TotalTokens)
	assert.Equal(t, "m", res.Model)

	reqs := client.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "m", reqs[0].Model)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "What is 2+2?"}}, reqs[0].Messages)
	assert.Empty(t, reqs[0].Tools)
}

func TestComplete_FullHistory(t *testing.T) {
	client := &scriptedClient{replies: []*Reply{{Content: "hello"}}}
	h := NewHandle(client, "m")
	conv := conversation.Build([]api.RawTurn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hey"},
		{Role: "user", Content: "again"},
	})
	pol := autoPolicy()
	pol.ReturnScope = policy.FullHistory

	res, err := h.Complete(context.Background(), conv, pol)
	require.NoError(t, err)
	assert.Equal(t, []api.Turn{
		{Role: api.RoleUser, Content: "hi"},
		{Role: api.RoleAssistant, Content: "hey"},
		{Role: api.RoleUser, Content: "again"},
		{Role: api.RoleAssistant, Content: "hello"},
	}, res.Turns)
	assert.Equal(t, 1, res.Produced)
}

func TestComplete_EmptyReply(t *testing.T) {
	client := &scriptedClient{replies: []*Reply{{Content: "   "}}}
	h := NewHandle(client, "m")

	res, err := h.Complete(context.Background(), userConv("hi"), autoPolicy())
	require.NoError(t, err)
	assert.Zero(t, res.Produced)
	assert.Empty(t, res.Turns)
}

func TestComplete_ToolRoundTrip(t *testing.T) {
	client := &scriptedClient{replies: []*Reply{
		{ToolCalls: []ToolCall{
			{ID: "c1", Name: "clock__now", Arguments: `{"tz":"UTC"}`},
			{ID: "c2", Name: "clock__today", Arguments: `{}`},
		}, Usage: api.Usage{TotalTokens: 5}},
		{Content: "It is noon.", Usage: api.Usage{TotalTokens: 7}},
	}}
	h := NewHandle(client, "m").WithCapabilities(capability.Set{{Name: "clock", Module: echoModule("now", "today")}})

	res, err := h.Complete(context.Background(), userConv("time?"), autoPolicy())
	require.NoError(t, err)
	assert.Equal(t, []api.Turn{{Role: api.RoleAssistant, Content: "It is noon."}}, res.Turns)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, 12, res.Usage.TotalTokens)

	reqs := client.recorded()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Tools, 2)

	second := reqs[1].Messages
	require.Len(t, second, 4)
	assert.Equal(t, RoleAssistant, second[1].Role)
	assert.Len(t, second[1].ToolCalls, 2)
	assert.Equal(t, Message{Role: RoleTool, Content: `now:{"tz":"UTC"}`, ToolCallID: "c1", Name: "clock__now"}, second[2])
	assert.Equal(t, Message{Role: RoleTool, Content: `today:{}`, ToolCallID: "c2", Name: "clock__today"}, second[3])
}

func TestComplete_ResultsKeepCallOrder(t *testing.T) {
	slow := &funcModule{names: []string{"slow", "fast"}, fn: func(ctx context.Context, call capability.Call) (*capability.Result, error) {
		if call.Function == "slow" {
			time.Sleep(20 * time.Millisecond)
		}
		return &capability.Result{Output: call.Function}, nil
	}}
	client := &scriptedClient{replies: []*Reply{
		{ToolCalls: []ToolCall{{ID: "a", Name: "m__slow"}, {ID: "b", Name: "m__fast"}}},
		{Content: "ok"},
	}}
	h := NewHandle(client, "m").WithCapabilities(capability.Set{{Name: "m", Module: slow}})

	_, err := h.Complete(context.Background(), userConv("go"), autoPolicy())
	require.NoError(t, err)

	msgs := client.recorded()[1].Messages
	assert.Equal(t, "a", msgs[2].ToolCallID)
	assert.Equal(t, "slow", msgs[2].Content)
	assert.Equal(t, "b", msgs[3].ToolCallID)
	assert.Equal(t, "fast", msgs[3].Content)
}

func TestComplete_UnknownFunctionFedBack(t *testing.T) {
	client := &scriptedClient{replies: []*Reply{
		{ToolCalls: []ToolCall{{Name: "nope__missing"}}},
		{Content: "sorry"},
	}}
	h := NewHandle(client, "m").WithCapabilities(capability.Set{{Name: "clock", Module: echoModule("now")}})

	res, err := h.Complete(context.Background(), userConv("x"), autoPolicy())
	require.NoError(t, err)
	assert.Equal(t, "sorry", res.Turns[0].Content)

	toolMsg := client.recorded()[1].Messages[2]
	assert.Equal(t, RoleTool, toolMsg.Role)
	assert.Equal(t, "call_1_0", toolMsg.ToolCallID)
	assert.Contains(t, toolMsg.Content, `unknown function "nope__missing"`)
}

func TestComplete_CapabilityErrorFedBack(t *testing.T) {
	failing := &funcModule{names: []string{"boom"}, fn: func(context.Context, capability.Call) (*capability.Result, error) {
		return nil, errors.New("upstream down")
	}}
	client := &scriptedClient{replies: []*Reply{
		{ToolCalls: []ToolCall{{ID: "c", Name: "x__boom"}}},
		{Content: "could not check"},
	}}
	h := NewHandle(client, "m").WithCapabilities(capability.Set{{Name: "x", Module: failing}})

	res, err := h.Complete(context.Background(), userConv("x"), autoPolicy())
	require.NoError(t, err)
	assert.Equal(t, "could not check", res.Turns[0].Content)
	assert.Contains(t, client.recorded()[1].Messages[2].Content, "upstream down")
}

func TestComplete_MaxRoundsWithholdsTools(t *testing.T) {
	call := &Reply{ToolCalls: []ToolCall{{ID: "c", Name: "clock__now"}}}
	client := &scriptedClient{replies: []*Reply{call, call, {Content: "final"}}}
	h := NewHandle(client, "m").WithCapabilities(capability.Set{{Name: "clock", Module: echoModule("now")}})
	pol := autoPolicy()
	pol.MaxAutonomousCalls = 2

	res, err := h.Complete(context.Background(), userConv("x"), pol)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rounds)

	reqs := client.recorded()
	require.Len(t, reqs, 3)
	assert.NotEmpty(t, reqs[0].Tools)
	assert.NotEmpty(t, reqs[1].Tools)
	assert.Empty(t, reqs[2].Tools)
}

func TestComplete_ToolCallsWithoutToolsEndLoop(t *testing.T) {
	client := &scriptedClient{replies: []*Reply{
		{Content: "partial", ToolCalls: []ToolCall{{ID: "c", Name: "clock__now"}}},
	}}
	h := NewHandle(client, "m").WithCapabilities(capability.Set{{Name: "clock", Module: echoModule("now")}})
	pol := autoPolicy()
	pol.AllowAutonomousCalls = false

	res, err := h.Complete(context.Background(), userConv("x"), pol)
	require.NoError(t, err)
	assert.Equal(t, "partial", res.Turns[0].Content)
	assert.Len(t, client.recorded(), 1)
	assert.Empty(t, client.recorded()[0].Tools)
}

func TestComplete_BackendError(t *testing.T) {
	apiErr := api.NewTooManyRequestsError("slow down")
	h := NewHandle(&scriptedClient{err: apiErr}, "m")

	_, err := h.Complete(context.Background(), userConv("x"), autoPolicy())
	require.Error(t, err)
	var got *api.APIError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, api.ErrorTypeTooManyRequests, got.Type)
}

func TestComplete_DeadlineDuringBackendCall(t *testing.T) {
	h := NewHandle(&scriptedClient{block: true}, "m")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Complete(ctx, userConv("x"), autoPolicy())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestComplete_CancelAbortsCapability(t *testing.T) {
	started := make(chan struct{})
	sawCancel := make(chan struct{})
	waiting := &funcModule{names: []string{"wait"}, fn: func(ctx context.Context, call capability.Call) (*capability.Result, error) {
		close(started)
		<-ctx.Done()
		close(sawCancel)
		return nil, ctx.Err()
	}}
	client := &scriptedClient{replies: []*Reply{{ToolCalls: []ToolCall{{ID: "c", Name: "w__wait"}}}}}
	h := NewHandle(client, "m").WithCapabilities(capability.Set{{Name: "w", Module: waiting}})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := h.Complete(ctx, userConv("x"), autoPolicy())
	assert.ErrorIs(t, err, context.Canceled)

	select {
	case <-sawCancel:
	case <-time.After(time.Second):
		t.Fatal("capability did not observe cancellation")
	}
	assert.Len(t, client.recorded(), 1)
}

func TestMessagesFromTurns(t *testing.T) {
	msgs := MessagesFromTurns([]api.Turn{
		{Role: api.RoleUser, Content: "a"},
		{Role: api.RoleAssistant, Content: "b"},
	})
	assert.Equal(t, []Message{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}}, msgs)
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := &ConfigurationError{Field: "endpoint", Message: "must not be empty"}
	assert.Equal(t, "backend configuration: endpoint: must not be empty", err.Error())
	assert.Equal(t, "backend configuration: bad", (&ConfigurationError{Message: "bad"}).Error())
}

func TestToolSpecParametersPreserved(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`)
	mod := &funcModule{fn: nil}
	h := NewHandle(&scriptedClient{}, "m").WithCapabilities(capability.Set{{Name: "s", Module: &schemaModule{funcModule: mod, schema: schema}}})
	require.Len(t, h.Tools(), 1)
	assert.JSONEq(t, string(schema), string(h.Tools()[0].Parameters))
}

type schemaModule struct {
	*funcModule
	schema json.RawMessage
}

func (m *schemaModule) Functions() []capability.Function {
	return []capability.Function{{Name: "q", Description: "query", Parameters: m.schema}}
}
