package tools

import (
	"context"

	"github.com/HendryAvila/lodestar/internal/graph"
	"github.com/mark3labs/mcp-go/mcp"
)

// VersionGetTool handles the graph_version_get MCP tool.
type VersionGetTool struct {
	engine *graph.Engine
}

// NewVersionGetTool creates a VersionGetTool.
func NewVersionGetTool(engine *graph.Engine) *VersionGetTool {
	return &VersionGetTool{engine: engine}
}

// Definition returns the MCP tool definition for graph_version_get.
func (t *VersionGetTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_version_get",
		mcp.WithDescription("Return one immutable graph snapshot by id, with derived percentages."),
		mcp.WithString("version_id",
			mcp.Required(),
			mcp.Description("Snapshot id as returned by graph_patch or graph_version_list"),
		),
	)
}

// Handle processes the graph_version_get tool call.
func (t *VersionGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(req, "version_id")
	if err != nil {
		return failure(err)
	}
	v, err := t.engine.Version(ctx, id)
	if err != nil {
		return failure(err)
	}
	return success(v)
}

// ─── VersionListTool ────────────────────────────────────────────────────────

// VersionListTool handles the graph_version_list MCP tool.
type VersionListTool struct {
	engine *graph.Engine
}

// NewVersionListTool creates a VersionListTool.
func NewVersionListTool(engine *graph.Engine) *VersionListTool {
	return &VersionListTool{engine: engine}
}

// Definition returns the MCP tool definition for graph_version_list.
func (t *VersionListTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_version_list",
		mcp.WithDescription("List the most recent graph snapshots, oldest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum snapshots to return (default: 50)"),
		),
	)
}

// Handle processes the graph_version_list tool call.
func (t *VersionListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(req, "limit", 0)
	if limit < 0 {
		return invalidArg("'limit' must not be negative, got %d", limit)
	}
	vs, err := t.engine.Versions(ctx, limit)
	if err != nil {
		return failure(err)
	}
	if vs == nil {
		vs = []graph.VersionInfo{}
	}
	return success(map[string]any{"versions": vs})
}

// ─── VersionRestoreTool ─────────────────────────────────────────────────────

// VersionRestoreTool handles the graph_version_restore MCP tool.
type VersionRestoreTool struct {
	engine *graph.Engine
}

// NewVersionRestoreTool creates a VersionRestoreTool.
func NewVersionRestoreTool(engine *graph.Engine) *VersionRestoreTool {
	return &VersionRestoreTool{engine: engine}
}

// Definition returns the MCP tool definition for graph_version_restore.
func (t *VersionRestoreTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_version_restore",
		mcp.WithDescription(
			"Make a snapshot's content live again. History is never rewound: restoring appends a new " +
				"version, and restoring content equal to the live graph changes nothing.",
		),
		mcp.WithString("version_id",
			mcp.Required(),
			mcp.Description("Snapshot id to restore"),
		),
	)
}

// Handle processes the graph_version_restore tool call.
func (t *VersionRestoreTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(req, "version_id")
	if err != nil {
		return failure(err)
	}
	res, err := t.engine.RestoreVersion(ctx, id)
	if err != nil {
		return failure(err)
	}
	return success(res)
}

// ─── VersionDefaultTool ─────────────────────────────────────────────────────

// VersionDefaultTool handles the graph_version_default MCP tool.
type VersionDefaultTool struct {
	engine *graph.Engine
}

// NewVersionDefaultTool creates a VersionDefaultTool.
func NewVersionDefaultTool(engine *graph.Engine) *VersionDefaultTool {
	return &VersionDefaultTool{engine: engine}
}

// Definition returns the MCP tool definition for graph_version_default.
func (t *VersionDefaultTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_version_default",
		mcp.WithDescription(
			"Return the baseline snapshot id (the earliest version). When no version exists yet, the " +
				"live graph is snapshotted first.",
		),
	)
}

// Handle processes the graph_version_default tool call.
func (t *VersionDefaultTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := t.engine.DefaultVersion(ctx)
	if err != nil {
		return failure(err)
	}
	return success(b)
}
