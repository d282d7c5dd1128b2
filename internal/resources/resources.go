// Package resources implements MCP resource handlers.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (graph://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/lodestar/internal/graph"
	"github.com/mark3labs/mcp-go/mcp"
)

// Resource URIs.
const (
	LiveURI      = "graph://live"
	HierarchyURI = "graph://hierarchy"
)

// Handler manages graph resource endpoints.
type Handler struct {
	engine *graph.Engine
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(engine *graph.Engine) *Handler {
	return &Handler{engine: engine}
}

// LiveResource returns the MCP resource definition for the live graph.
func (h *Handler) LiveResource() mcp.Resource {
	return mcp.NewResource(
		LiveURI,
		"Live Objective Graph",
		mcp.WithResourceDescription("The live graph document with derived true percentages"),
		mcp.WithMIMEType("application/json"),
	)
}

// HierarchyResource returns the MCP resource definition for the nested view.
func (h *Handler) HierarchyResource() mcp.Resource {
	return mcp.NewResource(
		HierarchyURI,
		"Objective Hierarchy",
		mcp.WithResourceDescription("The live graph nested by causal parents"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleLive returns the live document as JSON.
func (h *Handler) HandleLive(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	state, err := h.engine.Live(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonResource(req.Params.URI, state.Document)
}

// HandleHierarchy returns the hierarchy as JSON.
func (h *Handler) HandleHierarchy(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	roots, err := h.engine.Hierarchy(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	if roots == nil {
		roots = []*graph.TreeNode{}
	}
	return jsonResource(req.Params.URI, roots)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
