// Package prompts implements MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the client to run a specific sequence of tools. Unlike tools
// (which the client calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// GraphEditPrompt handles the graph-edit MCP prompt.
// It guides the client through turning a plain-language change into a
// safe JSON Patch.
type GraphEditPrompt struct{}

// NewGraphEditPrompt creates a GraphEditPrompt.
func NewGraphEditPrompt() *GraphEditPrompt {
	return &GraphEditPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *GraphEditPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("graph-edit",
		mcp.WithPromptDescription(
			"Change the objective graph in plain language. " +
				"The change is turned into a JSON Patch, checked, and applied as one versioned step.",
		),
		mcp.WithArgument("change",
			mcp.ArgumentDescription("What to change, e.g. 'add a Write docs task under Launch'"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the graph-edit prompt request.
func (p *GraphEditPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	change := "(ask me what to change)"
	if args := req.Params.Arguments; args != nil {
		if c, ok := args["change"]; ok && strings.TrimSpace(c) != "" {
			change = strings.TrimSpace(c)
		}
	}

	return &mcp.GetPromptResult{
		Description: "Edit the objective graph",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to change my objective graph: %s\n\n"+
						"Please:\n"+
						"1. Run `graph_get` and find the nodes involved\n"+
						"2. Write the smallest RFC 6902 patch that makes the change. New nodes need a unique id, "+
						"a `label` and a `graph` container; link progress with `parents`\n"+
						"3. Show me the patch and wait for my OK\n"+
						"4. Apply it with `graph_patch` and tell me which parents were rebalanced\n"+
						"5. If it fails, explain the error code and propose a fix. Nothing was stored",
					change,
				)),
			},
		},
	}, nil
}
