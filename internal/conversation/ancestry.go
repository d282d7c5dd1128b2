package conversation

import (
	"context"

	"github.com/HendryAvila/lodestar/internal/faults"
)

// MessageSource fetches single messages by id. Implementations report a
// missing row with faults.MessageNotFound.
type MessageSource interface {
	GetMessage(ctx context.Context, id string) (*Message, error)
}

// Branch is a message chain ordered from head to root.
type Branch []*Message

// IDs returns the message ids in branch order.
func (b Branch) IDs() []string {
	out := make([]string, len(b))
	for i, m := range b {
		out[i] = m.ID
	}
	return out
}

// Contains reports whether id is on the branch.
func (b Branch) Contains(id string) bool {
	for _, m := range b {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Set returns the branch ids as a lookup set.
func (b Branch) Set() map[string]bool {
	out := make(map[string]bool, len(b))
	for _, m := range b {
		out[m.ID] = true
	}
	return out
}

// Head is the message the branch was walked from.
func (b Branch) Head() *Message {
	if len(b) == 0 {
		return nil
	}
	return b[0]
}

// WalkAncestry follows parent links from messageID up to the root and
// returns the chain head first. Every message must belong to
// conversationID; a repeated id fails with CircularAncestry.
func WalkAncestry(ctx context.Context, src MessageSource, conversationID, messageID string) (Branch, error) {
	var chain Branch
	visited := map[string]bool{}

	for id := messageID; id != ""; {
		if visited[id] {
			path := append(chain.IDs(), id)
			return nil, faults.New(faults.CircularAncestry, "message %q appears twice in its own ancestry", id).WithPath(path...)
		}
		visited[id] = true

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, err := src.GetMessage(ctx, id)
		if err != nil {
			return nil, faults.Storage("fetch message", err)
		}
		if msg == nil {
			return nil, faults.New(faults.MessageNotFound, "message %q not found", id)
		}
		if msg.ConversationID != conversationID {
			return nil, faults.New(faults.ConversationMismatch,
				"message %q belongs to conversation %q, not %q", id, msg.ConversationID, conversationID)
		}
		chain = append(chain, msg)

		if msg.IsRoot() {
			break
		}
		id = *msg.ParentMessageID
	}
	return chain, nil
}

// Index serves messages from memory and defers misses to a fallback
// source, so a conversation fetched in bulk can be walked without a query
// per link while cross-conversation links are still resolved.
type Index struct {
	byID     map[string]*Message
	fallback MessageSource
}

// NewIndex indexes msgs by id. fallback may be nil.
func NewIndex(msgs []*Message, fallback MessageSource) *Index {
	byID := make(map[string]*Message, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
	}
	return &Index{byID: byID, fallback: fallback}
}

// GetMessage implements MessageSource.
func (ix *Index) GetMessage(ctx context.Context, id string) (*Message, error) {
	if m, ok := ix.byID[id]; ok {
		return m, nil
	}
	if ix.fallback == nil {
		return nil, faults.New(faults.MessageNotFound, "message %q not found", id)
	}
	return ix.fallback.GetMessage(ctx, id)
}
