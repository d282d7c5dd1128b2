// Package conversation models conversation messages and walks the parent
// links that turn a message tree into branches.
package conversation

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Roles recorded by the message tool. Any non-empty role is stored as-is.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one conversation message. Content is either a JSON string or
// structured content (an array of parts or an object).
type Message struct {
	ID              string          `json:"id"`
	ConversationID  string          `json:"conversation_id"`
	Role            string          `json:"role"`
	Content         json.RawMessage `json:"content"`
	CreatedAt       time.Time       `json:"created_at"`
	ParentMessageID *string         `json:"parent_message_id,omitempty"`
}

// TextContent encodes plain text as message content.
func TextContent(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// Text flattens the message content to plain text.
//
// A string is returned as-is. Arrays of parts contribute every string part
// and every part's "text" member, joined by newlines. An object contributes
// its "text" or "content" member. Anything else is returned as compact JSON.
func (m *Message) Text() string {
	raw := bytes.TrimSpace(m.Content)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	if s, ok := extractText(v); ok {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func extractText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []any:
		var parts []string
		for _, p := range t {
			if s, ok := extractText(p); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n"), len(parts) > 0
	case map[string]any:
		for _, key := range []string{"text", "content"} {
			if inner, ok := t[key]; ok {
				if s, ok := extractText(inner); ok {
					return s, true
				}
			}
		}
	}
	return "", false
}

// IsRoot reports whether the message starts a conversation tree.
func (m *Message) IsRoot() bool {
	return m.ParentMessageID == nil || *m.ParentMessageID == ""
}
