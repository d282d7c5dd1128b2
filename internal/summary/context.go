package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/lodestar/internal/conversation"
	"github.com/HendryAvila/lodestar/internal/timeutil"
)

// Entry kinds in a layered context.
const (
	EntrySummary = "summary"
	EntryToday   = "today"
	EntryRecent  = "recent"
)

// Entry is one layer of an assembled context.
type Entry struct {
	Kind        string     `json:"kind"`
	Role        string     `json:"role"`
	Level       Level      `json:"level,omitempty"`
	Label       string     `json:"label,omitempty"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	SummaryID   string     `json:"summary_id,omitempty"`
	MessageID   string     `json:"message_id,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	Content     string     `json:"content"`
	Tokens      int        `json:"tokens"`
}

// LayeredContext is the composed context handed to a model: summaries from
// coarse to fine, then today's messages, then a short tail of earlier
// messages no day summary covers.
type LayeredContext struct {
	Entries []Entry     `json:"entries"`
	Tokens  TokenCounts `json:"tokens"`
}

// Text renders the context as plain text, one block per entry.
func (lc *LayeredContext) Text() string {
	blocks := make([]string, 0, len(lc.Entries))
	for _, e := range lc.Entries {
		if e.Kind == EntrySummary {
			blocks = append(blocks, fmt.Sprintf("[%s]\n%s", e.Label, e.Content))
			continue
		}
		blocks = append(blocks, fmt.Sprintf("%s: %s", e.Role, e.Content))
	}
	return strings.Join(blocks, "\n\n")
}

// ContextSummary pairs a required period with the summary resolved for it.
type ContextSummary struct {
	Period  Period
	Summary *Summary
}

// AssembleContext composes the layered context. summaries must be in
// requirement order (months, weeks, days with yesterday last); periods
// without a summary are left out.
func AssembleContext(req *Requirements, summaries []ContextSummary, tailSize int) *LayeredContext {
	lc := &LayeredContext{Entries: []Entry{}}
	loc := req.Calendar.loc()

	var yesterday *ContextSummary
	coveredDays := map[string]bool{}
	for _, level := range []Level{LevelMonth, LevelWeek, LevelDay} {
		for i := range summaries {
			cs := summaries[i]
			if cs.Period.Level != level || cs.Summary == nil {
				continue
			}
			if level == LevelDay {
				coveredDays[timeutil.DayKey(cs.Period.Start, loc)] = true
				if cs.Period.Start.Equal(req.YesterdayStart) {
					yesterday = &summaries[i]
					continue
				}
			}
			lc.addSummary(cs)
		}
	}
	if yesterday != nil {
		lc.addSummary(*yesterday)
	}

	for _, m := range req.Today {
		lc.addMessage(EntryToday, m)
	}

	var tail []*conversation.Message
	for _, m := range req.Earlier {
		if !coveredDays[timeutil.DayKey(m.CreatedAt, loc)] {
			tail = append(tail, m)
		}
	}
	if tailSize >= 0 && len(tail) > tailSize {
		tail = tail[len(tail)-tailSize:]
	}
	for _, m := range tail {
		lc.addMessage(EntryRecent, m)
	}

	lc.Tokens.Total = lc.Tokens.SystemSummaries + lc.Tokens.Raw
	return lc
}

func (lc *LayeredContext) addSummary(cs ContextSummary) {
	start := cs.Period.Start
	tokens := EstimateTokens(cs.Summary.Content)
	lc.Entries = append(lc.Entries, Entry{
		Kind:        EntrySummary,
		Role:        conversation.RoleSystem,
		Level:       cs.Period.Level,
		Label:       cs.Period.Label,
		PeriodStart: &start,
		SummaryID:   cs.Summary.ID,
		Content:     cs.Summary.Content,
		Tokens:      tokens,
	})
	lc.Tokens.SystemSummaries += tokens
}

func (lc *LayeredContext) addMessage(kind string, m *conversation.Message) {
	created := m.CreatedAt
	text := m.Text()
	tokens := EstimateTokens(text)
	lc.Entries = append(lc.Entries, Entry{
		Kind:      kind,
		Role:      m.Role,
		MessageID: m.ID,
		CreatedAt: &created,
		Content:   text,
		Tokens:    tokens,
	})
	lc.Tokens.Raw += tokens
}
