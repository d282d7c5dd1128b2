package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/lodestar/internal/conversation"
)

// DayInput is what a Summarizer sees for one DAY period.
type DayInput struct {
	Period   Period
	Messages []*conversation.Message
	Location *time.Location
}

// AggregateInput is what a Summarizer sees for one WEEK or MONTH period:
// the DAY summaries it covers, oldest first.
type AggregateInput struct {
	Period   Period
	Children []*Summary
	Location *time.Location
}

// Summarizer produces summary text. Aggregates are built from child
// summaries only, never from raw messages.
type Summarizer interface {
	SummarizeDay(ctx context.Context, in DayInput) (string, error)
	SummarizeAggregate(ctx context.Context, in AggregateInput) (string, error)
}

// BulletSummarizer is the deterministic Summarizer: one bullet per message
// for days and one bullet per child lead line for weeks and months.
type BulletSummarizer struct {
	// MaxChars truncates message text in day bullets. Zero disables it.
	MaxChars int
	// EmptyPlaceholder is written for days without messages. When empty,
	// such days get only the header line.
	EmptyPlaceholder string
}

// SummarizeDay implements Summarizer.
func (b BulletSummarizer) SummarizeDay(_ context.Context, in DayInput) (string, error) {
	loc := locOrUTC(in.Location)
	var sb strings.Builder
	sb.WriteString(dayHeader(in.Period.Start.In(loc), in.Messages))
	if len(in.Messages) == 0 && b.EmptyPlaceholder != "" {
		sb.WriteString("\n")
		sb.WriteString(b.EmptyPlaceholder)
	}
	for _, m := range in.Messages {
		fmt.Fprintf(&sb, "\n- [%s] %s: %s", m.CreatedAt.In(loc).Format("15:04"), m.Role, truncate(oneLine(m.Text()), b.MaxChars))
	}
	return sb.String(), nil
}

// SummarizeAggregate implements Summarizer.
func (b BulletSummarizer) SummarizeAggregate(_ context.Context, in AggregateInput) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d active %s", in.Period.Label, len(in.Children), plural(len(in.Children), "day", "days"))
	for _, c := range in.Children {
		sb.WriteString("\n- ")
		sb.WriteString(c.LeadLine())
	}
	return sb.String(), nil
}

func dayHeader(day time.Time, msgs []*conversation.Message) string {
	date := day.Format("Mon Jan 2, 2006")
	if len(msgs) == 0 {
		return date + ": no messages"
	}
	var roles []string
	counts := map[string]int{}
	for _, m := range msgs {
		if counts[m.Role] == 0 {
			roles = append(roles, m.Role)
		}
		counts[m.Role]++
	}
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, fmt.Sprintf("%d %s", counts[r], r))
	}
	first := truncate(oneLine(msgs[0].Text()), 60)
	return fmt.Sprintf("%s: %d %s (%s), starting with %q",
		date, len(msgs), plural(len(msgs), "message", "messages"), strings.Join(parts, ", "), first)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
