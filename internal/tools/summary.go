package tools

import (
	"context"
	"strings"

	"github.com/HendryAvila/lodestar/internal/faults"
	"github.com/HendryAvila/lodestar/internal/summary"
	"github.com/mark3labs/mcp-go/mcp"
)

// Context tool modes.
const (
	ModePlan  = "plan"
	ModeBuild = "build"
)

// summaryRequestOptions are the arguments shared by the summary tools.
func summaryRequestOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("Conversation to summarize"),
		),
		mcp.WithString("message_id",
			mcp.Required(),
			mcp.Description("Branch head; only messages on its ancestry count"),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone overriding the conversation's stored zone"),
		),
		mcp.WithString("levels",
			mcp.Description("Comma-separated levels to report: DAY, WEEK, MONTH (default: all)"),
		),
		mcp.WithString("now",
			mcp.Description("RFC 3339 reference instant (default: the head message's creation time)"),
		),
	}
}

func parseSummaryRequest(req mcp.CallToolRequest) (summary.Request, error) {
	var out summary.Request
	var err error
	if out.ConversationID, err = requiredString(req, "conversation_id"); err != nil {
		return out, err
	}
	if out.MessageID, err = requiredString(req, "message_id"); err != nil {
		return out, err
	}
	out.Timezone = strings.TrimSpace(req.GetString("timezone", ""))

	names, err := listArg(req, "levels")
	if err != nil {
		return out, err
	}
	if out.Levels, err = summary.ParseLevels(names); err != nil {
		return out, err
	}
	if out.Now, err = timeArg(req, "now"); err != nil {
		return out, err
	}
	return out, nil
}

// SummaryPlanTool handles the conversation_summary_plan MCP tool.
type SummaryPlanTool struct {
	coordinator *summary.Coordinator
}

// NewSummaryPlanTool creates a SummaryPlanTool.
func NewSummaryPlanTool(c *summary.Coordinator) *SummaryPlanTool {
	return &SummaryPlanTool{coordinator: c}
}

// Definition returns the MCP tool definition for conversation_summary_plan.
func (t *SummaryPlanTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"List the DAY/WEEK/MONTH summaries a branch needs and whether each one exists, is invalid " +
				"(stored, but built from another branch) or is missing. Nothing is generated.",
		),
	}, summaryRequestOptions()...)
	return mcp.NewTool("conversation_summary_plan", opts...)
}

// Handle processes the conversation_summary_plan tool call.
func (t *SummaryPlanTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sreq, err := parseSummaryRequest(req)
	if err != nil {
		return failure(err)
	}
	plan, err := t.coordinator.Plan(ctx, sreq)
	if err != nil {
		return failure(err)
	}
	return success(plan)
}

// ─── ContextTool ────────────────────────────────────────────────────────────

// ContextTool handles the conversation_context MCP tool.
type ContextTool struct {
	coordinator *summary.Coordinator
}

// NewContextTool creates a ContextTool.
func NewContextTool(c *summary.Coordinator) *ContextTool {
	return &ContextTool{coordinator: c}
}

// Definition returns the MCP tool definition for conversation_context.
func (t *ContextTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription(
			"Build the layered context for a branch: summaries from coarsest to finest, today's messages, " +
				"then a short tail of recent raw messages, with token estimates. Missing or invalid summaries " +
				"are generated bottom-up; valid ones are reused. mode=plan only reports what would happen.",
		),
		mcp.WithString("mode",
			mcp.Description("build (default) or plan"),
			mcp.Enum(ModeBuild, ModePlan),
		),
	}, summaryRequestOptions()...)
	return mcp.NewTool("conversation_context", opts...)
}

// Handle processes the conversation_context tool call.
func (t *ContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mode := strings.ToLower(strings.TrimSpace(req.GetString("mode", "")))
	if mode == "" {
		mode = ModeBuild
	}
	if mode != ModePlan && mode != ModeBuild {
		return failure(faults.New(faults.UnsupportedMode, "mode %q must be %s or %s", mode, ModeBuild, ModePlan))
	}

	sreq, err := parseSummaryRequest(req)
	if err != nil {
		return failure(err)
	}

	if mode == ModePlan {
		plan, err := t.coordinator.Plan(ctx, sreq)
		if err != nil {
			return failure(err)
		}
		return success(map[string]any{"mode": mode, "plan": plan})
	}

	res, err := t.coordinator.BuildContext(ctx, sreq)
	if err != nil {
		return failure(err)
	}
	return success(map[string]any{
		"mode":           mode,
		"result":         res,
		"context_text":   res.Context.Text(),
		"token_estimate": res.Context.Tokens,
	})
}
