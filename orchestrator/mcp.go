package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/linkeep/linkeep/kit"
)

// RegisterMCP registers linkeep tools on an MCP server, exposing the
// same operations the bus dispatch table serves.
func (o *Orchestrator) RegisterMCP(srv *mcp.Server) {
	o.registerExtractTool(srv)
	o.registerSnapshotTool(srv)
	o.registerSaveTool(srv)
}

// --- extract ---

type mcpExtractReq struct {
	URL string `json:"url"`
}

func (o *Orchestrator) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "linkeep_extract",
		Description: "Extract title, description, content, and thumbnails from a web page.",
		InputSchema: kit.InputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL (empty = current tab)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*mcpExtractReq)
		outcome := o.ExtractPageInfo(ctx, r.URL)
		return outcome.Info, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r mcpExtractReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- snapshot ---

func (o *Orchestrator) registerSnapshotTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "linkeep_snapshot",
		Description: "Capture a self-contained offline snapshot (HTML + images) of a page and attach it to a bookmark.",
		InputSchema: kit.InputSchema(map[string]any{
			"bookmarkId": map[string]any{"type": "string", "description": "Bookmark to attach the snapshot to"},
			"title":      map[string]any{"type": "string", "description": "Snapshot title"},
			"url":        map[string]any{"type": "string", "description": "Page URL"},
		}, []string{"bookmarkId", "url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*SnapshotRequest)
		return o.CreateSnapshot(ctx, *r)
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r SnapshotRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- save ---

func (o *Orchestrator) registerSaveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "linkeep_save",
		Description: "Save a bookmark with its metadata and tags.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":         map[string]any{"type": "string"},
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"tags":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*SaveRequest)
		payload, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		return o.handleSave(ctx, payload)
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r SaveRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
