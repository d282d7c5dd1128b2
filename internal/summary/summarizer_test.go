package summary

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/HendryAvila/lodestar/internal/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bulletLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(line, "- ") {
			out = append(out, line)
		}
	}
	return out
}

func TestBulletSummarizer_Day(t *testing.T) {
	a := utcSunday.Anchors(at("2025-10-15T10:00:00Z"))
	p := utcSunday.DayPeriod(a.YesterdayStart, a)
	msgs := []*conversation.Message{
		textMsg("a", "user", "2025-10-14T09:00:00Z"),
		textMsg("b", "assistant", "2025-10-14T15:00:00Z"),
	}
	msgs[1].Content = conversation.TextContent(strings.Repeat("x", 50))

	out, err := BulletSummarizer{MaxChars: 20}.SummarizeDay(context.Background(), DayInput{Period: p, Messages: msgs})
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	assert.Equal(t, `Tue Oct 14, 2025: 2 messages (1 user, 1 assistant), starting with "message a"`, lines[0])
	assert.Equal(t, []string{
		"- [09:00] user: message a",
		"- [15:00] assistant: " + strings.Repeat("x", 20) + "...",
	}, bulletLines(out))
}

func TestBulletSummarizer_EmptyDay(t *testing.T) {
	a := utcSunday.Anchors(at("2025-10-15T10:00:00Z"))
	p := utcSunday.DayPeriod(a.YesterdayStart, a)

	out, err := BulletSummarizer{EmptyPlaceholder: "Nothing happened."}.SummarizeDay(context.Background(), DayInput{Period: p})
	require.NoError(t, err)
	assert.Equal(t, "Tue Oct 14, 2025: no messages\nNothing happened.", out)

	out, err = BulletSummarizer{}.SummarizeDay(context.Background(), DayInput{Period: p})
	require.NoError(t, err)
	assert.Equal(t, "Tue Oct 14, 2025: no messages", out)
}

func TestBulletSummarizer_AggregateUsesLeadLines(t *testing.T) {
	a := utcSunday.Anchors(at("2025-10-15T10:00:00Z"))
	p := utcSunday.WeekPeriod(at("2025-10-05T00:00:00Z"), a)
	children := []*Summary{
		{Content: "Mon Oct 6, 2025: 1 message\n- [10:00] user: hi"},
		{Content: "\nWed Oct 8, 2025: 2 messages\n- [..]"},
	}

	out, err := BulletSummarizer{}.SummarizeAggregate(context.Background(), AggregateInput{Period: p, Children: children})
	require.NoError(t, err)
	assert.Equal(t,
		"Last Week (Oct 5 - Oct 11, 2025): 2 active days\n- Mon Oct 6, 2025: 1 message\n- Wed Oct 8, 2025: 2 messages",
		out)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("a"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 1, EstimateTokens("héé"))
}

func TestAssembleContext_OrderAndTail(t *testing.T) {
	msgs := []*conversation.Message{
		textMsg("old1", "user", "2025-10-08T09:00:00Z"),
		textMsg("old2", "user", "2025-10-09T09:00:00Z"),
		textMsg("old3", "user", "2025-10-10T09:00:00Z"),
		textMsg("mon", "user", "2025-10-13T09:00:00Z"),
		textMsg("y1", "user", "2025-10-14T09:00:00Z"),
		textMsg("now", "user", "2025-10-15T10:00:00Z"),
	}
	r := ComputeRequirements(msgs, at("2025-10-15T10:00:00Z"), utcSunday)
	require.Len(t, r.Weeks, 1)
	require.Len(t, r.Days, 2)

	summaries := []ContextSummary{
		{Period: r.Weeks[0], Summary: &Summary{ID: "w", Content: "week"}},
		{Period: r.Days[0], Summary: &Summary{ID: "d-mon", Content: "monday"}},
		{Period: r.Days[1], Summary: &Summary{ID: "d-y", Content: "yesterday"}},
	}
	lc := AssembleContext(r, summaries, 2)

	var got []string
	for _, e := range lc.Entries {
		if e.Kind == EntrySummary {
			got = append(got, e.Kind+":"+e.SummaryID)
		} else {
			got = append(got, e.Kind+":"+e.MessageID)
		}
	}
	assert.Equal(t, []string{
		"summary:w", "summary:d-mon", "summary:d-y",
		"today:now",
		"recent:old2", "recent:old3",
	}, got)

	assert.Equal(t, EstimateTokens("week")+EstimateTokens("monday")+EstimateTokens("yesterday"), lc.Tokens.SystemSummaries)
	assert.Equal(t, 3*EstimateTokens("message now"), lc.Tokens.Raw)
	assert.Equal(t, lc.Tokens.SystemSummaries+lc.Tokens.Raw, lc.Tokens.Total)
	assert.Contains(t, lc.Text(), "[Yesterday (Oct 14, 2025)]\nyesterday")
}

func TestAssembleContext_SkippedPeriodsAreLeftOut(t *testing.T) {
	r := ComputeRequirements(nil, time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC), utcSunday)
	lc := AssembleContext(r, []ContextSummary{{Period: r.Days[0]}}, 6)
	assert.Empty(t, lc.Entries)
	assert.Zero(t, lc.Tokens.Total)
}
