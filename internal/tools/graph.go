package tools

import (
	"context"
	"strings"

	"github.com/HendryAvila/lodestar/internal/faults"
	"github.com/HendryAvila/lodestar/internal/graph"
	"github.com/HendryAvila/lodestar/internal/timeutil"
	"github.com/mark3labs/mcp-go/mcp"
)

// GraphGetTool handles the graph_get MCP tool.
type GraphGetTool struct {
	engine *graph.Engine
}

// NewGraphGetTool creates a GraphGetTool.
func NewGraphGetTool(engine *graph.Engine) *GraphGetTool {
	return &GraphGetTool{engine: engine}
}

// Definition returns the MCP tool definition for graph_get.
func (t *GraphGetTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_get",
		mcp.WithDescription(
			"Return the live objective graph document with derived true_percentage_of_total " +
				"values and its revision.",
		),
	)
}

// Handle processes the graph_get tool call.
func (t *GraphGetTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := t.engine.Live(ctx)
	if err != nil {
		return failure(err)
	}
	return success(state)
}

// ─── GraphPatchTool ─────────────────────────────────────────────────────────

// GraphPatchTool handles the graph_patch MCP tool.
type GraphPatchTool struct {
	engine *graph.Engine
}

// NewGraphPatchTool creates a GraphPatchTool.
func NewGraphPatchTool(engine *graph.Engine) *GraphPatchTool {
	return &GraphPatchTool{engine: engine}
}

// Definition returns the MCP tool definition for graph_patch.
func (t *GraphPatchTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_patch",
		mcp.WithDescription(
			"Apply an RFC 6902 JSON Patch to the live graph. The patch is atomic: the result is validated " +
				"before anything is stored, parents that gain children are rebalanced to equal shares, and " +
				"a new version is created only when the document actually changes.",
		),
		mcp.WithArray("patch",
			mcp.Required(),
			mcp.Items(map[string]any{"type": "object"}),
			mcp.Description(`Patch operations, e.g. [{"op":"add","path":"/nodes/n1","value":{"label":"Ship","graph":"main"}}]. A JSON string holding the array is also accepted.`),
		),
	)
}

// Handle processes the graph_patch tool call.
func (t *GraphPatchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patch, err := jsonArg(req, "patch")
	if err != nil {
		return failure(err)
	}
	res, err := t.engine.Patch(ctx, patch)
	if err != nil {
		return failure(err)
	}
	return success(res)
}

// ─── GraphHierarchyTool ─────────────────────────────────────────────────────

// GraphHierarchyTool handles the graph_hierarchy MCP tool.
type GraphHierarchyTool struct {
	engine *graph.Engine
}

// NewGraphHierarchyTool creates a GraphHierarchyTool.
func NewGraphHierarchyTool(engine *graph.Engine) *GraphHierarchyTool {
	return &GraphHierarchyTool{engine: engine}
}

// Definition returns the MCP tool definition for graph_hierarchy.
func (t *GraphHierarchyTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_hierarchy",
		mcp.WithDescription(
			"Return the live graph nested by causal parents. Roots are nodes without parents; " +
				"a node with several parents appears under each of them.",
		),
	)
}

// Handle processes the graph_hierarchy tool call.
func (t *GraphHierarchyTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roots, err := t.engine.Hierarchy(ctx)
	if err != nil {
		return failure(err)
	}
	return success(map[string]any{"roots": roots})
}

// ─── GraphTodayTool ─────────────────────────────────────────────────────────

// GraphTodayTool handles the graph_today MCP tool.
type GraphTodayTool struct {
	engine          *graph.Engine
	defaultTimezone string
}

// NewGraphTodayTool creates a GraphTodayTool. defaultTimezone applies when
// the caller names none.
func NewGraphTodayTool(engine *graph.Engine, defaultTimezone string) *GraphTodayTool {
	return &GraphTodayTool{engine: engine, defaultTimezone: defaultTimezone}
}

// Definition returns the MCP tool definition for graph_today.
func (t *GraphTodayTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_today",
		mcp.WithDescription(
			"Return the nodes scheduled on today's local date together with every objective they feed " +
				"(their transitive causal parents), flat and as a hierarchy.",
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone for the local day (default: server default timezone)"),
		),
		mcp.WithString("now",
			mcp.Description("RFC 3339 reference instant (default: current time)"),
		),
	)
}

// Handle processes the graph_today tool call.
func (t *GraphTodayTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now, err := timeArg(req, "now")
	if err != nil {
		return failure(err)
	}
	if now.IsZero() {
		now = timeNow()
	}

	name := strings.TrimSpace(req.GetString("timezone", ""))
	if name == "" {
		name = t.defaultTimezone
	}
	loc, err := timeutil.ResolveLocation(name)
	if err != nil {
		return failure(faults.Wrap(faults.InvalidArgument, err, "unknown timezone %q", name))
	}

	view, err := t.engine.TodayContext(ctx, now, loc)
	if err != nil {
		return failure(err)
	}
	return success(view)
}
