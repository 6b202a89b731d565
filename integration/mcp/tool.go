// Package mcp traces tool invocations made through an MCP client.
// Importing the package links its interception target into the default
// catalog.
package mcp

import (
	"context"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/tsuiseki/internal/model"
)

// Caller is the slice of the MCP client the adapter wraps; the mcp-go
// client satisfies it.
type Caller interface {
	CallTool(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error)
}

// Client routes tool calls on an underlying MCP client through the
// tracing pipeline.
type Client struct {
	caller Caller
	server string
}

// Wrap builds a traced Client around an MCP caller. serverName identifies
// the MCP server on spans.
func Wrap(caller Caller, serverName string) *Client {
	return &Client{caller: caller, server: serverName}
}

// CallTool invokes the tool through the tracing pipeline.
func (c *Client) CallTool(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	m := callToolMethod()
	rec := &model.CallRecord{
		Instance: c,
		Kwargs: map[string]any{
			"name":      request.Params.Name,
			"arguments": request.Params.Arguments,
		},
		Method: m,
	}
	result, err := callToolHook.Trace(ctx, m, rec, func(ctx context.Context) (any, error) {
		return c.caller.CallTool(ctx, request)
	})
	res, _ := result.(*mcplib.CallToolResult)
	return res, err
}
