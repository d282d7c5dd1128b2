package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/HendryAvila/lodestar/internal/conversation"
	"github.com/HendryAvila/lodestar/internal/faults"
	"github.com/HendryAvila/lodestar/internal/timeutil"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// newID is a package-level variable for testability.
var newID = uuid.NewString

// MessageRecorder stores conversation messages and reads them back.
type MessageRecorder interface {
	conversation.MessageSource
	InsertMessage(ctx context.Context, m *conversation.Message) error
	EnsureConversation(ctx context.Context, id, timezone string) error
}

// RecordMessageTool handles the conversation_record_message MCP tool.
type RecordMessageTool struct {
	store MessageRecorder
}

// NewRecordMessageTool creates a RecordMessageTool.
func NewRecordMessageTool(store MessageRecorder) *RecordMessageTool {
	return &RecordMessageTool{store: store}
}

// Definition returns the MCP tool definition for conversation_record_message.
func (t *RecordMessageTool) Definition() mcp.Tool {
	return mcp.NewTool("conversation_record_message",
		mcp.WithDescription(
			"Record a conversation message. Messages form a tree through parent_message_id; " +
				"each path from a root to a message is a branch that summaries are built for.",
		),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("Conversation the message belongs to (created on first use)"),
		),
		mcp.WithString("role",
			mcp.Required(),
			mcp.Description("Author role: user, assistant or system"),
		),
		mcp.WithString("content",
			mcp.Description("Plain text content. Required unless content_json is given."),
		),
		mcp.WithObject("content_json",
			mcp.Description("Structured content (object or array of parts) stored verbatim"),
		),
		mcp.WithString("parent_message_id",
			mcp.Description("Parent message; omit for a root message"),
		),
		mcp.WithString("message_id",
			mcp.Description("Message id (default: a new UUID)"),
		),
		mcp.WithString("created_at",
			mcp.Description("RFC 3339 creation time (default: now)"),
		),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone to store on the conversation"),
		),
	)
}

// Handle processes the conversation_record_message tool call.
func (t *RecordMessageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	convID, err := requiredString(req, "conversation_id")
	if err != nil {
		return failure(err)
	}
	role, err := requiredString(req, "role")
	if err != nil {
		return failure(err)
	}
	content, err := messageContent(req)
	if err != nil {
		return failure(err)
	}
	created, err := timeArg(req, "created_at")
	if err != nil {
		return failure(err)
	}
	if created.IsZero() {
		created = timeNow()
	}

	tz := strings.TrimSpace(req.GetString("timezone", ""))
	if tz != "" {
		loc, err := timeutil.ResolveLocation(tz)
		if err != nil {
			return failure(faults.Wrap(faults.InvalidArgument, err, "unknown timezone %q", tz))
		}
		tz = loc.String()
	}

	msg := &conversation.Message{
		ID:             strings.TrimSpace(req.GetString("message_id", "")),
		ConversationID: convID,
		Role:           strings.ToLower(role),
		Content:        content,
		CreatedAt:      created.UTC(),
	}
	if msg.ID == "" {
		msg.ID = newID()
	}

	if parentID := strings.TrimSpace(req.GetString("parent_message_id", "")); parentID != "" {
		parent, err := t.store.GetMessage(ctx, parentID)
		if err != nil {
			return failure(err)
		}
		if parent.ConversationID != convID {
			return failure(faults.New(faults.ConversationMismatch,
				"parent %q belongs to conversation %q, not %q", parentID, parent.ConversationID, convID))
		}
		msg.ParentMessageID = &parentID
	}

	if err := t.store.EnsureConversation(ctx, convID, tz); err != nil {
		return failure(faults.Storage("ensure conversation", err))
	}
	if err := t.store.InsertMessage(ctx, msg); err != nil {
		return failure(faults.Storage("insert message", err))
	}
	return success(msg)
}

func messageContent(req mcp.CallToolRequest) (json.RawMessage, error) {
	if v, ok := req.GetArguments()["content_json"]; ok && v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, faults.Wrap(faults.InvalidArgument, err, "'content_json' is not encodable")
		}
		return b, nil
	}
	text := req.GetString("content", "")
	if strings.TrimSpace(text) == "" {
		return nil, faults.New(faults.InvalidArgument, "'content' or 'content_json' is required")
	}
	return conversation.TextContent(text), nil
}

// ─── AncestryTool ───────────────────────────────────────────────────────────

// AncestryTool handles the conversation_ancestry MCP tool.
type AncestryTool struct {
	source conversation.MessageSource
}

// NewAncestryTool creates an AncestryTool.
func NewAncestryTool(source conversation.MessageSource) *AncestryTool {
	return &AncestryTool{source: source}
}

// Definition returns the MCP tool definition for conversation_ancestry.
func (t *AncestryTool) Definition() mcp.Tool {
	return mcp.NewTool("conversation_ancestry",
		mcp.WithDescription(
			"Return the branch ending at a message: the message and every ancestor, head first.",
		),
		mcp.WithString("conversation_id",
			mcp.Required(),
			mcp.Description("Conversation to walk"),
		),
		mcp.WithString("message_id",
			mcp.Required(),
			mcp.Description("Branch head"),
		),
	)
}

// Handle processes the conversation_ancestry tool call.
func (t *AncestryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	convID, err := requiredString(req, "conversation_id")
	if err != nil {
		return failure(err)
	}
	msgID, err := requiredString(req, "message_id")
	if err != nil {
		return failure(err)
	}

	branch, err := conversation.WalkAncestry(ctx, t.source, convID, msgID)
	if err != nil {
		return failure(err)
	}
	return success(map[string]any{
		"conversation_id": convID,
		"head_message_id": msgID,
		"length":          len(branch),
		"message_ids":     branch.IDs(),
		"messages":        branch,
	})
}
