// Package summary derives rolling DAY/WEEK/MONTH summaries from a
// conversation branch and assembles them into a layered context.
//
// Summaries are keyed by (conversation, level, period start) and carry the
// id of the branch head that produced them. A stored summary is reusable
// only from branches that contain that provenance message; any other
// branch regenerates it and the new row supersedes the old one.
package summary

import (
	"strings"
	"time"

	"github.com/HendryAvila/lodestar/internal/faults"
)

// Level is a summary granularity.
type Level string

const (
	LevelDay   Level = "DAY"
	LevelWeek  Level = "WEEK"
	LevelMonth Level = "MONTH"
)

// Levels lists every level, finest first.
var Levels = []Level{LevelDay, LevelWeek, LevelMonth}

// ParseLevel accepts a level name in any case.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDay:
		return LevelDay, nil
	case LevelWeek:
		return LevelWeek, nil
	case LevelMonth:
		return LevelMonth, nil
	}
	return "", faults.New(faults.UnsupportedLevel, "level %q must be one of DAY, WEEK, MONTH", s)
}

// ParseLevels parses a list of level names, dropping duplicates.
func ParseLevels(names []string) ([]Level, error) {
	var out []Level
	seen := map[Level]bool{}
	for _, n := range names {
		l, err := ParseLevel(n)
		if err != nil {
			return nil, err
		}
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out, nil
}

// Summary is a stored summary row.
type Summary struct {
	ID                 string    `json:"id"`
	ConversationID     string    `json:"conversation_id"`
	Level              Level     `json:"level"`
	PeriodStart        time.Time `json:"period_start"`
	Content            string    `json:"content"`
	CreatedByMessageID string    `json:"created_by_message_id"`
	CreatedAt          time.Time `json:"created_at"`
}

// LeadLine returns the first non-empty line of the content.
func (s *Summary) LeadLine() string {
	for _, line := range strings.Split(s.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// Period is a half-open local time range [Start, End) at one level.
type Period struct {
	Level Level     `json:"level"`
	Start time.Time `json:"period_start"`
	End   time.Time `json:"period_end"`
	Label string    `json:"label"`
}

// Key identifies the period independently of the zone Start is expressed in.
func (p Period) Key() string {
	return periodKey(p.Level, p.Start)
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

func periodKey(level Level, start time.Time) string {
	return string(level) + "@" + start.UTC().Format(time.RFC3339)
}

// Status classifies a required period against stored summaries.
type Status string

const (
	// StatusExists means a stored summary was produced on this branch.
	StatusExists Status = "exists"
	// StatusInvalid means summaries exist but none belong to this branch.
	StatusInvalid Status = "invalid"
	StatusMissing Status = "missing"
)

// Outcome is how a period was resolved while building context.
type Outcome string

const (
	OutcomeGenerated Outcome = "generated"
	OutcomeReused    Outcome = "reused"
	OutcomeSkipped   Outcome = "skipped"
)

// Skip reasons.
const (
	SkipNoMessages       = "no_messages"
	SkipNoChildSummaries = "no_child_summaries"
)
