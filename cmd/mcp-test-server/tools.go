package main

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type worldClockInput struct {
	Zone string `json:"zone" jsonschema:"IANA time zone name, e.g. Europe/Berlin"`
}

type echoInput struct {
	Message string `json:"message" jsonschema:"The message to echo back"`
}

func newServer(now func() time.Time) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "palaver-test-mcp", Version: "v1.0.0"},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "world_clock",
		Description: "Returns the current time in a time zone",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in worldClockInput) (*mcp.CallToolResult, any, error) {
		loc, err := time.LoadLocation(in.Zone)
		if err != nil {
			return errorResult(fmt.Sprintf("unknown time zone %q", in.Zone)), nil, nil
		}
		return textResult(now().In(loc).Format(time.RFC3339)), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in echoInput) (*mcp.CallToolResult, any, error) {
		return textResult("Echo: " + in.Message), nil, nil
	})

	return server
}

func textResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

func errorResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}
