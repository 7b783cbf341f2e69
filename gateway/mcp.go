// CLAUDE:SUMMARY Registers the journey operations as MCP tools and serves them over stdio.
package gateway

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/journey/kit"
)

// MCP tool names.
const (
	ToolStartRecording = "journey_start_recording"
	ToolRun            = "journey_run"
	ToolSave           = "journey_save"
	ToolStop           = "journey_stop"
	ToolHistory        = "journey_history"
	ToolGetRecording   = "journey_get_recording"
)

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// RegisterMCP registers the journey tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	eps := s.Endpoints()
	wrap := func(op string) kit.Endpoint {
		return s.middleware(op)(eps[op])
	}

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name: ToolStartRecording,
		Description: "Open a browser, record what the user does until every page is closed " +
			"(or journey_stop is called) and return the generated journey script.",
		InputSchema: inputSchema(map[string]any{
			"url":      map[string]any{"type": "string", "description": "Optional start URL or local file path"},
			"is_suite": map[string]any{"type": "boolean", "description": "Generate a standalone journey file"},
		}, nil),
	}, wrap(OpStartRecording), kit.DecodeJSON[StartRecordingRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        ToolRun,
		Description: "Run a journey script with the synthetics runner and return its output.",
		InputSchema: inputSchema(map[string]any{
			"source_code": map[string]any{"type": "string", "description": "Journey source"},
			"is_suite":    map[string]any{"type": "boolean", "description": "Source is a standalone journey file"},
		}, []string{"source_code"}),
	}, wrap(OpRunJourney), kit.DecodeJSON[RunJourneyRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        ToolSave,
		Description: "Save a journey script to the journeys directory.",
		InputSchema: inputSchema(map[string]any{
			"source": map[string]any{"type": "string", "description": "Journey source"},
			"name":   map[string]any{"type": "string", "description": "File name, default " + DefaultSaveName},
		}, []string{"source"}),
	}, wrap(OpSaveFile), kit.DecodeJSON[SaveFileRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        ToolStop,
		Description: "Stop the active recording or browsing session.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, wrap(OpStop), func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	})

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        ToolHistory,
		Description: "List recent recordings and journey runs.",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Maximum entries per list"},
		}, nil),
	}, wrap(OpHistory), kit.DecodeJSON[HistoryRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        ToolGetRecording,
		Description: "Return one recorded journey with its source and compacted actions.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Recording ID, as returned by journey_start_recording or journey_history"},
		}, []string{"id"}),
	}, wrap(OpRecording), decodeRecording)
}

// decodeRecording tags the call with the requested recording ID so the
// endpoint logs carry it.
func decodeRecording(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	in, err := kit.DecodeJSON[RecordingRequest]()(req)
	if err != nil {
		return nil, err
	}
	id := in.Request.(*RecordingRequest).ID
	in.EnrichCtx = func(ctx context.Context) context.Context {
		return kit.WithRecordingID(ctx, id)
	}
	return in, nil
}

// ServeMCP runs the journey tools over stdio until ctx is done.
func (s *Service) ServeMCP(ctx context.Context, impl *mcp.Implementation) error {
	srv := mcp.NewServer(impl, nil)
	s.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}
