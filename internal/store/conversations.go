package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/lodestar/internal/conversation"
	"github.com/HendryAvila/lodestar/internal/faults"
	"github.com/HendryAvila/lodestar/internal/timeutil"
	"go.uber.org/zap"
)

// EnsureConversation creates the conversation row if missing. A non-empty
// timezone is stored, replacing any previous one.
func (s *Store) EnsureConversation(ctx context.Context, id, timezone string) error {
	if _, err := s.execHook(ctx, s.db,
		`INSERT INTO conversations (id, timezone, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, nullableString(timezone), formatTime(timeNow()),
	); err != nil {
		return fmt.Errorf("store: ensure conversation: %w", err)
	}
	if timezone == "" {
		return nil
	}
	if _, err := s.execHook(ctx, s.db,
		`UPDATE conversations SET timezone = ? WHERE id = ?`, timezone, id,
	); err != nil {
		return fmt.Errorf("store: set conversation timezone: %w", err)
	}
	return nil
}

// InsertMessage stores a message, creating its conversation if needed.
// Content must be valid JSON.
func (s *Store) InsertMessage(ctx context.Context, m *conversation.Message) error {
	if !json.Valid(m.Content) {
		return fmt.Errorf("store: message %q content is not valid JSON", m.ID)
	}
	if err := s.EnsureConversation(ctx, m.ConversationID, ""); err != nil {
		return err
	}
	var parent *string
	if !m.IsRoot() {
		parent = m.ParentMessageID
	}
	if _, err := s.execHook(ctx, s.db,
		`INSERT INTO conversation_messages (id, conversation_id, role, content, created_at, parent_message_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, string(m.Content), formatTime(m.CreatedAt), parent,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("store: message %q already exists", m.ID)
		}
		return fmt.Errorf("store: insert message: %w", err)
	}
	s.log.Debug("message recorded",
		zap.String("conversation_id", m.ConversationID),
		zap.String("message_id", m.ID),
	)
	return nil
}

const messageColumns = `id, conversation_id, role, content, created_at, parent_message_id`

// GetMessage implements conversation.MessageSource.
func (s *Store) GetMessage(ctx context.Context, id string) (*conversation.Message, error) {
	rows, err := s.queryItHook(ctx, s.db,
		`SELECT `+messageColumns+` FROM conversation_messages WHERE id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("store: get message: %w", err)
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, faults.New(faults.MessageNotFound, "message %q not found", id)
	}
	return msgs[0], nil
}

// MessagesForConversation returns a conversation's messages, oldest first.
func (s *Store) MessagesForConversation(ctx context.Context, conversationID string) ([]*conversation.Message, error) {
	rows, err := s.queryItHook(ctx, s.db,
		`SELECT `+messageColumns+` FROM conversation_messages
		 WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	return scanMessages(rows)
}

func scanMessages(rows rowScanner) ([]*conversation.Message, error) {
	defer func() { _ = rows.Close() }()

	var out []*conversation.Message
	for rows.Next() {
		var (
			m       conversation.Message
			content string
			created string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &content, &created, &m.ParentMessageID); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		t, err := parseTime(created)
		if err != nil {
			return nil, fmt.Errorf("store: message %q created_at: %w", m.ID, err)
		}
		m.CreatedAt = t
		m.Content = json.RawMessage(content)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// ResolveTimezone picks the first valid zone among the override, the
// conversation's stored zone and the configured default, falling back to
// UTC. Only storage failures are returned as errors.
func (s *Store) ResolveTimezone(ctx context.Context, conversationID, override string) (string, error) {
	var stored sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT timezone FROM conversations WHERE id = ?`, conversationID,
	).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("store: resolve timezone: %w", err)
	}

	for _, name := range []string{override, stored.String, s.cfg.DefaultTimezone} {
		if strings.TrimSpace(name) == "" {
			continue
		}
		loc, err := timeutil.ResolveLocation(name)
		if err != nil {
			s.log.Debug("ignoring unknown timezone",
				zap.String("conversation_id", conversationID),
				zap.String("timezone", name),
			)
			continue
		}
		return loc.String(), nil
	}
	return "UTC", nil
}
