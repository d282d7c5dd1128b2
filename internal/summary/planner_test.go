package summary

import (
	"testing"
	"time"

	"github.com/HendryAvila/lodestar/internal/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func textMsg(id, role, created string) *conversation.Message {
	return &conversation.Message{
		ID:             id,
		ConversationID: "conv",
		Role:           role,
		Content:        conversation.TextContent("message " + id),
		CreatedAt:      at(created),
	}
}

func labels(ps []Period) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Label)
	}
	return out
}

var utcSunday = Calendar{Location: time.UTC, WeekStart: time.Sunday}

func TestComputeRequirements_YesterdayScenario(t *testing.T) {
	msgs := []*conversation.Message{
		textMsg("a", "user", "2025-10-14T09:00:00Z"),
		textMsg("b", "assistant", "2025-10-14T15:00:00Z"),
		textMsg("c", "user", "2025-10-15T10:00:00Z"),
	}
	r := ComputeRequirements(msgs, at("2025-10-15T10:00:00Z"), utcSunday)

	assert.Equal(t, at("2025-10-15T00:00:00Z"), r.TodayStart)
	assert.Equal(t, at("2025-10-16T00:00:00Z"), r.TodayEnd)
	assert.Equal(t, at("2025-10-14T00:00:00Z"), r.YesterdayStart)
	assert.Equal(t, at("2025-10-12T00:00:00Z"), r.CurrentWeekStart)
	assert.Equal(t, at("2025-10-01T00:00:00Z"), r.CurrentMonthStart)

	assert.Empty(t, r.Months)
	assert.Empty(t, r.Weeks)
	require.Len(t, r.Days, 1)
	assert.Equal(t, "Yesterday (Oct 14, 2025)", r.Days[0].Label)
	assert.Len(t, r.MessagesOn(r.Days[0].Start), 2)
	require.Len(t, r.Today, 1)
	assert.Equal(t, "c", r.Today[0].ID)
}

func TestComputeRequirements_AllLevels(t *testing.T) {
	msgs := []*conversation.Message{
		textMsg("m1", "user", "2025-08-03T12:00:00Z"),
		textMsg("m2", "user", "2025-09-20T12:00:00Z"),
		textMsg("m3", "user", "2025-09-29T12:00:00Z"),
		textMsg("m4", "user", "2025-10-02T12:00:00Z"),
		textMsg("m5", "user", "2025-10-08T12:00:00Z"),
		textMsg("m6", "user", "2025-10-13T12:00:00Z"),
		textMsg("head", "user", "2025-10-15T10:00:00Z"),
	}
	r := ComputeRequirements(msgs, at("2025-10-15T10:00:00Z"), utcSunday)

	assert.Equal(t, []string{"August 2025", "Last Month (September 2025)"}, labels(r.Months))
	assert.Equal(t, []string{"Week of Sep 28, 2025", "Last Week (Oct 5 - Oct 11, 2025)"}, labels(r.Weeks))
	assert.Equal(t, []string{"Monday (Oct 13, 2025)", "Yesterday (Oct 14, 2025)"}, labels(r.Days))

	// The week straddling the month boundary only covers its October days.
	assert.Equal(t, []time.Time{at("2025-10-02T00:00:00Z")}, r.ChildDays(r.Weeks[0]))
	assert.Equal(t, []time.Time{at("2025-09-20T00:00:00Z"), at("2025-09-29T00:00:00Z")}, r.ChildDays(r.Months[1]))

	var order []Level
	for _, p := range r.Periods() {
		order = append(order, p.Level)
	}
	assert.Equal(t, []Level{LevelMonth, LevelMonth, LevelWeek, LevelWeek, LevelDay, LevelDay}, order)
}

func TestComputeRequirements_WeekStartsToday(t *testing.T) {
	// Sunday Oct 12 is the first day of the current week, so yesterday
	// belongs to last week and is still a required day.
	msgs := []*conversation.Message{
		textMsg("m1", "user", "2025-10-06T12:00:00Z"),
		textMsg("m2", "user", "2025-10-11T12:00:00Z"),
	}
	r := ComputeRequirements(msgs, at("2025-10-12T09:00:00Z"), utcSunday)

	assert.Equal(t, []string{"Yesterday (Oct 11, 2025)"}, labels(r.Days))
	assert.Equal(t, []string{"Last Week (Oct 5 - Oct 11, 2025)"}, labels(r.Weeks))
	assert.Empty(t, r.Months)
}

func TestComputeRequirements_MondayWeeks(t *testing.T) {
	msgs := []*conversation.Message{textMsg("m1", "user", "2025-10-12T12:00:00Z")}
	r := ComputeRequirements(msgs, at("2025-10-15T10:00:00Z"), Calendar{Location: time.UTC, WeekStart: time.Monday})

	assert.Equal(t, at("2025-10-13T00:00:00Z"), r.CurrentWeekStart)
	assert.Equal(t, []string{"Last Week (Oct 6 - Oct 12, 2025)"}, labels(r.Weeks))
}

func TestComputeRequirements_UsesLocalDays(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 01:00Z on the 15th is the evening of the 14th in New York.
	msgs := []*conversation.Message{textMsg("m1", "user", "2025-10-15T01:00:00Z")}
	r := ComputeRequirements(msgs, at("2025-10-15T14:00:00Z"), Calendar{Location: loc})

	require.Len(t, r.Days, 1)
	assert.Equal(t, "Yesterday (Oct 14, 2025)", r.Days[0].Label)
	assert.Len(t, r.MessagesOn(r.Days[0].Start), 1)
	assert.Empty(t, r.Today)
}

func TestComputeRequirements_IgnoresFutureMessages(t *testing.T) {
	msgs := []*conversation.Message{textMsg("late", "user", "2025-10-20T00:00:00Z")}
	r := ComputeRequirements(msgs, at("2025-10-15T10:00:00Z"), utcSunday)
	assert.Empty(t, r.Today)
	assert.Empty(t, r.Earlier)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel(" week ")
	require.NoError(t, err)
	assert.Equal(t, LevelWeek, l)

	_, err = ParseLevel("YEAR")
	assert.Error(t, err)

	ls, err := ParseLevels([]string{"day", "DAY", "Month"})
	require.NoError(t, err)
	assert.Equal(t, []Level{LevelDay, LevelMonth}, ls)
}
