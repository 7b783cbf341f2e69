// CLAUDE:SUMMARY Adapts kit endpoints to MCP tools with JSON argument decoding.
package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPDecodeResult holds the decoded request and an optional context enrichment.
type MCPDecodeResult struct {
	Request   any
	EnrichCtx func(context.Context) context.Context
}

// DecodeJSON returns a decode function unmarshalling the tool arguments into
// a fresh *T. Empty arguments decode to the zero value.
func DecodeJSON[T any]() func(*mcp.CallToolRequest) (*MCPDecodeResult, error) {
	return func(req *mcp.CallToolRequest) (*MCPDecodeResult, error) {
		r := new(T)
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, r); err != nil {
				return nil, err
			}
		}
		return &MCPDecodeResult{Request: r}, nil
	}
}

// RegisterMCPTool exposes endpoint as an MCP tool on srv. Bad arguments and
// endpoint failures come back as tool results flagged as errors, so the client
// sees the message instead of a protocol failure. The endpoint runs with the
// "mcp" transport tag.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, decode func(*mcp.CallToolRequest) (*MCPDecodeResult, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return callTool(WithTransport(ctx, "mcp"), endpoint, decode, req), nil
	})
}

func callTool(ctx context.Context, endpoint Endpoint, decode func(*mcp.CallToolRequest) (*MCPDecodeResult, error), req *mcp.CallToolRequest) *mcp.CallToolResult {
	in, err := decode(req)
	if err != nil {
		return toolError(fmt.Errorf("invalid arguments: %w", err))
	}
	if in.EnrichCtx != nil {
		ctx = in.EnrichCtx(ctx)
	}

	out, err := endpoint(ctx, in.Request)
	if err != nil {
		return toolError(err)
	}
	text, err := json.Marshal(out)
	if err != nil {
		return toolError(fmt.Errorf("marshal: %w", err))
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(text)}}}
}

func toolError(err error) *mcp.CallToolResult {
	res := &mcp.CallToolResult{}
	res.SetError(err)
	return res
}
