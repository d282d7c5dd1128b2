package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/lodestar/internal/summary"
)

var _ summary.Store = (*Store)(nil)

const summaryColumns = `id, conversation_id, level, period_start, content, created_by_message_id, created_at`

// Summaries implements summary.Store. Rows come back ordered by level,
// period start and creation time.
func (s *Store) Summaries(ctx context.Context, conversationID string, filter summary.Filter) ([]*summary.Summary, error) {
	where := []string{"conversation_id = ?"}
	args := []any{conversationID}
	if len(filter.Levels) > 0 {
		where = append(where, "level IN ("+placeholders(len(filter.Levels))+")")
		for _, l := range filter.Levels {
			args = append(args, string(l))
		}
	}
	if !filter.From.IsZero() {
		where = append(where, "period_start >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "period_start < ?")
		args = append(args, formatTime(filter.To))
	}

	rows, err := s.queryItHook(ctx, s.db,
		`SELECT `+summaryColumns+` FROM conversation_summaries
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY level, period_start, created_at`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list summaries: %w", err)
	}
	return scanSummaries(rows)
}

// UpsertSummary implements summary.Store. A row with the same
// conversation, level, period start and provenance is kept as-is and
// returned instead of the new one.
func (s *Store) UpsertSummary(ctx context.Context, sum *summary.Summary) (*summary.Summary, error) {
	if err := s.EnsureConversation(ctx, sum.ConversationID, ""); err != nil {
		return nil, err
	}
	created := sum.CreatedAt
	if created.IsZero() {
		created = timeNow()
	}
	if _, err := s.execHook(ctx, s.db,
		`INSERT INTO conversation_summaries (`+summaryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_id, level, period_start, created_by_message_id) DO NOTHING`,
		sum.ID, sum.ConversationID, string(sum.Level), formatTime(sum.PeriodStart),
		sum.Content, sum.CreatedByMessageID, formatTime(created),
	); err != nil {
		return nil, fmt.Errorf("store: upsert summary: %w", err)
	}

	rows, err := s.queryItHook(ctx, s.db,
		`SELECT `+summaryColumns+` FROM conversation_summaries
		 WHERE conversation_id = ? AND level = ? AND period_start = ? AND created_by_message_id = ?`,
		sum.ConversationID, string(sum.Level), formatTime(sum.PeriodStart), sum.CreatedByMessageID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: reload summary: %w", err)
	}
	out, err := scanSummaries(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("store: summary %q vanished after upsert", sum.ID)
	}
	return out[0], nil
}

func scanSummaries(rows rowScanner) ([]*summary.Summary, error) {
	defer func() { _ = rows.Close() }()

	var out []*summary.Summary
	for rows.Next() {
		var (
			sum            summary.Summary
			level          string
			start, created string
		)
		if err := rows.Scan(&sum.ID, &sum.ConversationID, &level, &start, &sum.Content, &sum.CreatedByMessageID, &created); err != nil {
			return nil, fmt.Errorf("store: scan summary: %w", err)
		}
		sum.Level = summary.Level(level)
		var err error
		if sum.PeriodStart, err = parseTime(start); err != nil {
			return nil, fmt.Errorf("store: summary %q period_start: %w", sum.ID, err)
		}
		if sum.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("store: summary %q created_at: %w", sum.ID, err)
		}
		out = append(out, &sum)
	}
	return out, rows.Err()
}
