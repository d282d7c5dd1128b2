package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/HendryAvila/lodestar/internal/conversation"
	"github.com/HendryAvila/lodestar/internal/faults"
	"github.com/HendryAvila/lodestar/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	msgs      []*conversation.Message
	summaries []*Summary
	timezone  string
	upserts   int
}

func (f *fakeStore) add(id, parent, role, created string) *conversation.Message {
	m := textMsg(id, role, created)
	if parent != "" {
		m.ParentMessageID = &parent
	}
	f.msgs = append(f.msgs, m)
	return m
}

func (f *fakeStore) GetMessage(_ context.Context, id string) (*conversation.Message, error) {
	for _, m := range f.msgs {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, faults.New(faults.MessageNotFound, "message %q not found", id)
}

func (f *fakeStore) MessagesForConversation(_ context.Context, conversationID string) ([]*conversation.Message, error) {
	var out []*conversation.Message
	for _, m := range f.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) Summaries(_ context.Context, conversationID string, filter Filter) ([]*Summary, error) {
	var out []*Summary
	for _, s := range f.summaries {
		if s.ConversationID != conversationID {
			continue
		}
		if !filter.From.IsZero() && s.PeriodStart.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !s.PeriodStart.Before(filter.To) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) UpsertSummary(_ context.Context, s *Summary) (*Summary, error) {
	for _, existing := range f.summaries {
		if existing.ConversationID == s.ConversationID && existing.Level == s.Level &&
			existing.PeriodStart.Equal(s.PeriodStart) && existing.CreatedByMessageID == s.CreatedByMessageID {
			return existing, nil
		}
	}
	f.upserts++
	cp := *s
	f.summaries = append(f.summaries, &cp)
	return &cp, nil
}

func (f *fakeStore) ResolveTimezone(_ context.Context, _ string, override string) (string, error) {
	for _, name := range []string{override, f.timezone} {
		if name == "" {
			continue
		}
		if loc, err := timeutil.ResolveLocation(name); err == nil {
			return loc.String(), nil
		}
	}
	return "UTC", nil
}

func newTestCoordinator(t *testing.T, st *fakeStore) *Coordinator {
	t.Helper()
	oldNow, oldID := timeNow, newID
	clock := at("2025-10-15T12:00:00Z")
	seq := 0
	timeNow = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	newID = func() string {
		seq++
		return fmt.Sprintf("sum-%d", seq)
	}
	t.Cleanup(func() { timeNow, newID = oldNow, oldID })

	return NewCoordinator(st, BulletSummarizer{MaxChars: 80, EmptyPlaceholder: "No activity."}, Options{}, nil)
}

func yesterdayStore() *fakeStore {
	st := &fakeStore{}
	st.add("A", "", "user", "2025-10-14T09:00:00Z")
	st.add("B", "A", "assistant", "2025-10-14T15:00:00Z")
	st.add("C", "B", "user", "2025-10-15T10:00:00Z")
	return st
}

func TestCoordinator_EndToEndYesterday(t *testing.T) {
	st := yesterdayStore()
	c := newTestCoordinator(t, st)
	ctx := context.Background()
	req := Request{ConversationID: "conv", MessageID: "C"}

	plan, err := c.Plan(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "UTC", plan.Timezone)
	assert.Equal(t, at("2025-10-14T00:00:00Z"), plan.Anchors.YesterdayStart)
	assert.Equal(t, 3, plan.BranchLength)
	require.Len(t, plan.Periods, 1)
	assert.Equal(t, "Yesterday (Oct 14, 2025)", plan.Periods[0].Label)
	assert.Equal(t, StatusMissing, plan.Periods[0].Status)
	assert.Equal(t, 2, plan.Periods[0].MessageCount)

	res, err := c.BuildContext(ctx, req)
	require.NoError(t, err)
	require.Len(t, res.Periods, 1)
	day := res.Periods[0]
	assert.Equal(t, OutcomeGenerated, day.Outcome)
	assert.Equal(t, StatusMissing, day.Previous)
	require.NotNil(t, day.Summary)
	assert.Equal(t, "C", day.Summary.CreatedByMessageID)
	assert.Len(t, bulletLines(day.Summary.Content), 2)

	// Layers: yesterday's summary, then today's message. A and B are
	// covered by the day summary so they are not repeated in the tail.
	entries := res.Context.Entries
	require.Len(t, entries, 2)
	assert.Equal(t, EntrySummary, entries[0].Kind)
	assert.Equal(t, EntryToday, entries[1].Kind)
	assert.Equal(t, "C", entries[1].MessageID)
	assert.Equal(t, EstimateTokens(day.Summary.Content), res.Context.Tokens.SystemSummaries)
	assert.Equal(t, EstimateTokens("message C"), res.Context.Tokens.Raw)

	// A second build on the same head reuses the stored row.
	again, err := c.BuildContext(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReused, again.Periods[0].Outcome)
	assert.Equal(t, day.Summary.ID, again.Periods[0].Summary.ID)
	assert.Equal(t, 1, st.upserts)
}

func TestCoordinator_BranchSwitchInvalidates(t *testing.T) {
	st := yesterdayStore()
	// D forks from A, so B (and C) are not on its branch.
	st.add("D", "A", "user", "2025-10-15T11:00:00Z")
	c := newTestCoordinator(t, st)
	ctx := context.Background()

	_, err := c.BuildContext(ctx, Request{ConversationID: "conv", MessageID: "C"})
	require.NoError(t, err)

	plan, err := c.Plan(ctx, Request{ConversationID: "conv", MessageID: "D"})
	require.NoError(t, err)
	require.Len(t, plan.Periods, 1)
	assert.Equal(t, StatusInvalid, plan.Periods[0].Status)
	assert.Equal(t, 1, plan.Periods[0].MessageCount)
	assert.Equal(t, "C", plan.Periods[0].Summary.CreatedByMessageID)

	res, err := c.BuildContext(ctx, Request{ConversationID: "conv", MessageID: "D"})
	require.NoError(t, err)
	day := res.Periods[0]
	assert.Equal(t, OutcomeGenerated, day.Outcome)
	assert.Equal(t, StatusInvalid, day.Previous)
	assert.Equal(t, "D", day.Summary.CreatedByMessageID)
	assert.Len(t, bulletLines(day.Summary.Content), 1)
	assert.Equal(t, 2, st.upserts)

	// The original branch still sees its own row.
	plan, err = c.Plan(ctx, Request{ConversationID: "conv", MessageID: "C"})
	require.NoError(t, err)
	assert.Equal(t, StatusExists, plan.Periods[0].Status)
	assert.Equal(t, "C", plan.Periods[0].Summary.CreatedByMessageID)
}

func TestCoordinator_DescendantReusesAncestorSummary(t *testing.T) {
	st := yesterdayStore()
	st.add("E", "C", "assistant", "2025-10-15T10:05:00Z")
	c := newTestCoordinator(t, st)
	ctx := context.Background()

	_, err := c.BuildContext(ctx, Request{ConversationID: "conv", MessageID: "C"})
	require.NoError(t, err)

	res, err := c.BuildContext(ctx, Request{ConversationID: "conv", MessageID: "E"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReused, res.Periods[0].Outcome)
	assert.Equal(t, 1, st.upserts)
	require.Len(t, res.Context.Entries, 3)
	assert.Equal(t, "E", res.Context.Entries[2].MessageID)
}

func allLevelsStore() *fakeStore {
	st := &fakeStore{}
	st.add("m1", "", "user", "2025-09-20T12:00:00Z")
	st.add("m2", "m1", "user", "2025-10-02T12:00:00Z")
	st.add("m3", "m2", "user", "2025-10-08T12:00:00Z")
	st.add("m4", "m3", "user", "2025-10-13T12:00:00Z")
	st.add("head", "m4", "user", "2025-10-15T10:00:00Z")
	return st
}

func TestCoordinator_BottomUpAggregates(t *testing.T) {
	st := allLevelsStore()
	c := newTestCoordinator(t, st)

	res, err := c.BuildContext(context.Background(), Request{ConversationID: "conv", MessageID: "head"})
	require.NoError(t, err)

	var got []string
	for _, p := range res.Periods {
		got = append(got, fmt.Sprintf("%s %s %s", p.Level, p.Label, p.Outcome))
	}
	assert.Equal(t, []string{
		"MONTH Last Month (September 2025) generated",
		"WEEK Week of Sep 28, 2025 generated",
		"WEEK Last Week (Oct 5 - Oct 11, 2025) generated",
		"DAY Monday (Oct 13, 2025) generated",
		"DAY Yesterday (Oct 14, 2025) generated",
	}, got)

	var supporting []string
	for _, p := range res.Supporting {
		supporting = append(supporting, timeutil.DayKey(p.Start, time.UTC))
		assert.Equal(t, OutcomeGenerated, p.Outcome)
	}
	assert.Equal(t, []string{"2025-09-20", "2025-10-02", "2025-10-08"}, supporting)

	// Aggregates are built from the day summaries' lead lines.
	month := res.Periods[0].Summary.Content
	assert.True(t, strings.HasPrefix(month, "Last Month (September 2025): 1 active day"), month)
	assert.Contains(t, month, "- Sat Sep 20, 2025: 1 message")

	// The empty yesterday still anchors the context.
	yesterday := res.Periods[4].Summary.Content
	assert.Equal(t, "Tue Oct 14, 2025: no messages\nNo activity.", yesterday)

	// 5 required + 3 supporting rows.
	assert.Equal(t, 8, st.upserts)

	var kinds []string
	for _, e := range res.Context.Entries {
		kinds = append(kinds, e.Kind+":"+string(e.Level))
	}
	assert.Equal(t, []string{
		"summary:MONTH", "summary:WEEK", "summary:WEEK", "summary:DAY", "summary:DAY",
		"today:", "recent:", "recent:", "recent:",
	}, kinds)
}

func TestCoordinator_ReusedAggregateSkipsChildren(t *testing.T) {
	st := allLevelsStore()
	c := newTestCoordinator(t, st)
	ctx := context.Background()
	req := Request{ConversationID: "conv", MessageID: "head"}

	_, err := c.BuildContext(ctx, req)
	require.NoError(t, err)
	res, err := c.BuildContext(ctx, req)
	require.NoError(t, err)

	for _, p := range res.Periods {
		assert.Equal(t, OutcomeReused, p.Outcome, p.Label)
	}
	assert.Empty(t, res.Supporting)
	assert.Equal(t, 8, st.upserts)
}

func TestCoordinator_LevelFilter(t *testing.T) {
	st := allLevelsStore()
	c := newTestCoordinator(t, st)

	plan, err := c.Plan(context.Background(), Request{ConversationID: "conv", MessageID: "head", Levels: []Level{LevelWeek}})
	require.NoError(t, err)
	require.Len(t, plan.Periods, 2)
	for _, p := range plan.Periods {
		assert.Equal(t, LevelWeek, p.Level)
	}
	assert.Equal(t, 1, plan.Periods[0].MessageCount)
}

func TestCoordinator_TimezoneOverride(t *testing.T) {
	st := yesterdayStore()
	c := newTestCoordinator(t, st)

	plan, err := c.Plan(context.Background(), Request{ConversationID: "conv", MessageID: "C", Timezone: "Asia/Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", plan.Timezone)
	// 10:00Z on the 15th is 19:00 in Tokyo; A (18:00 JST on the 14th) is
	// yesterday and B (00:00 JST on the 15th) is today.
	require.Len(t, plan.Periods, 1)
	assert.Equal(t, 1, plan.Periods[0].MessageCount)

	plan, err = c.Plan(context.Background(), Request{ConversationID: "conv", MessageID: "C", Timezone: "Mars/Base"})
	require.NoError(t, err)
	assert.Equal(t, "UTC", plan.Timezone)
}

func TestCoordinator_AncestryFailures(t *testing.T) {
	st := yesterdayStore()
	c := newTestCoordinator(t, st)
	ctx := context.Background()

	_, err := c.BuildContext(ctx, Request{ConversationID: "conv", MessageID: "missing"})
	assert.True(t, errors.Is(err, faults.MessageNotFound), "got %v", err)

	_, err = c.Plan(ctx, Request{ConversationID: "other", MessageID: "C"})
	assert.True(t, errors.Is(err, faults.ConversationMismatch), "got %v", err)

	loop := "C"
	st.msgs[0].ParentMessageID = &loop
	_, err = c.Plan(ctx, Request{ConversationID: "conv", MessageID: "C"})
	assert.True(t, errors.Is(err, faults.CircularAncestry), "got %v", err)
	assert.Zero(t, st.upserts)
}
