package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// DailyBriefingPrompt handles the daily-briefing MCP prompt.
// It walks the client through today's objectives and the conversation so far.
type DailyBriefingPrompt struct{}

// NewDailyBriefingPrompt creates a DailyBriefingPrompt.
func NewDailyBriefingPrompt() *DailyBriefingPrompt {
	return &DailyBriefingPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *DailyBriefingPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("daily-briefing",
		mcp.WithPromptDescription(
			"Start the day: review what is scheduled today, the objectives it feeds, " +
				"and what happened in the conversation recently.",
		),
		mcp.WithArgument("conversation_id",
			mcp.ArgumentDescription("Conversation to summarize (optional)"),
		),
		mcp.WithArgument("message_id",
			mcp.ArgumentDescription("Latest message of the branch to summarize (required with conversation_id)"),
		),
		mcp.WithArgument("timezone",
			mcp.ArgumentDescription("IANA timezone for 'today', e.g. Europe/Madrid"),
		),
	)
}

// Handle processes the daily-briefing prompt request.
func (p *DailyBriefingPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	convID := strings.TrimSpace(args["conversation_id"])
	msgID := strings.TrimSpace(args["message_id"])
	tz := strings.TrimSpace(args["timezone"])

	var b strings.Builder
	if tz != "" {
		fmt.Fprintf(&b, "Call `graph_today` with timezone %q.\n", tz)
	} else {
		b.WriteString("Call `graph_today`.\n")
	}
	if convID != "" && msgID != "" {
		fmt.Fprintf(&b, "Then call `conversation_context` with conversation_id %q and message_id %q.\n", convID, msgID)
	}
	b.WriteString("\nThen:\n" +
		"1. List today's scheduled nodes with their status\n" +
		"2. For each, name the objective it moves forward and its share of the total\n" +
		"3. Point out anything still not-started that blocks a parent objective\n")
	if convID != "" && msgID != "" {
		b.WriteString("4. Recap what we discussed yesterday and earlier this week in a few bullets\n")
	}

	return &mcp.GetPromptResult{
		Description: "Daily Briefing",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(b.String()),
			},
		},
	}, nil
}
