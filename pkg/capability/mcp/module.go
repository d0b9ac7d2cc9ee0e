// Package mcp exposes the tools of a Model Context Protocol server as a
// capability module. Tools are discovered once when the module connects;
// the function list is fixed afterwards.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rhuss/palaver/pkg/capability"
)

// Version is reported to MCP servers in the client handshake.
var Version = "dev"

// Module implements capability.Module for one MCP server.
type Module struct {
	cfg       ServerConfig
	session   *mcp.ClientSession
	functions []capability.Function
}

var _ capability.Module = (*Module)(nil)

// Connect opens a session to the configured server and discovers its tools.
func Connect(ctx context.Context, cfg ServerConfig) (*Module, error) {
	transport, err := newTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("mcp server %q: %w", cfg.Name, err)
	}
	return ConnectWithTransport(ctx, cfg, transport)
}

// ConnectWithTransport is Connect over an existing transport.
func ConnectWithTransport(ctx context.Context, cfg ServerConfig, transport mcp.Transport) (*Module, error) {
	client := mcp.NewClient(
		&mcp.Implementation{Name: "palaver", Version: Version},
		&mcp.ClientOptions{Capabilities: &mcp.ClientCapabilities{}},
	)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server %q: %w", cfg.Name, err)
	}

	m := &Module{cfg: cfg, session: session}
	if err := m.discover(ctx); err != nil {
		_ = session.Close()
		return nil, err
	}

	slog.Info("connected MCP server",
		"server", cfg.Name,
		"url", cfg.URL,
		"tools", len(m.functions),
	)
	return m, nil
}

func newTransport(cfg ServerConfig) (mcp.Transport, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	httpClient, err := httpClientFor(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Transport {
	case "sse":
		t := &mcp.SSEClientTransport{Endpoint: cfg.URL}
		if httpClient != nil {
			t.HTTPClient = httpClient
		}
		return t, nil
	case "streamable-http", "":
		t := &mcp.StreamableClientTransport{Endpoint: cfg.URL}
		if httpClient != nil {
			t.HTTPClient = httpClient
		}
		return t, nil
	}
	return nil, fmt.Errorf("unsupported transport type %q", cfg.Transport)
}

func (m *Module) discover(ctx context.Context) error {
	var fns []capability.Function
	for tool, err := range m.session.Tools(ctx, nil) {
		if err != nil {
			return fmt.Errorf("listing tools from %q: %w", m.cfg.Name, err)
		}
		if len(m.cfg.Tools) > 0 && !slices.Contains(m.cfg.Tools, tool.Name) {
			continue
		}
		fn, err := convertTool(tool)
		if err != nil {
			return fmt.Errorf("converting tool %q from %q: %w", tool.Name, m.cfg.Name, err)
		}
		fns = append(fns, fn)
	}
	m.functions = fns
	return nil
}

func (m *Module) Description() string {
	if m.cfg.Description != "" {
		return m.cfg.Description
	}
	return fmt.Sprintf("Tools served by MCP server %s", m.cfg.Name)
}

func (m *Module) Functions() []capability.Function {
	return m.functions
}

// Invoke calls the tool on the server. Protocol failures are returned as
// errors; tool-reported failures become error results.
func (m *Module) Invoke(ctx context.Context, call capability.Call) (*capability.Result, error) {
	var args map[string]any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return capability.ErrorResult(call.ID, fmt.Sprintf("invalid arguments JSON: %v", err)), nil
		}
	}

	res, err := m.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      call.Function,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("MCP tool %q on %q: %w", call.Function, m.cfg.Name, err)
	}
	return convertResult(call.ID, res), nil
}

// Close ends the MCP session.
func (m *Module) Close() error {
	if m.session == nil {
		return nil
	}
	return m.session.Close()
}

func convertTool(t *mcp.Tool) (capability.Function, error) {
	params := capability.EmptyParameters
	if t.InputSchema != nil {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return capability.Function{}, fmt.Errorf("marshaling input schema: %w", err)
		}
		params = data
	}
	return capability.Function{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  params,
	}, nil
}

func convertResult(callID string, res *mcp.CallToolResult) *capability.Result {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return &capability.Result{
		CallID:  callID,
		Output:  strings.Join(parts, "\n"),
		IsError: res.IsError,
	}
}
