package summary

import (
	"sort"
	"time"

	"github.com/HendryAvila/lodestar/internal/conversation"
	"github.com/HendryAvila/lodestar/internal/timeutil"
)

// Calendar fixes the zone and week convention periods are computed in.
type Calendar struct {
	Location  *time.Location
	WeekStart time.Weekday
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Anchors are the boundaries every period is measured against.
type Anchors struct {
	Now               time.Time `json:"now"`
	TodayStart        time.Time `json:"today_start"`
	TodayEnd          time.Time `json:"today_end"`
	YesterdayStart    time.Time `json:"yesterday_start"`
	CurrentWeekStart  time.Time `json:"current_week_start"`
	CurrentMonthStart time.Time `json:"current_month_start"`
}

// Anchors computes the boundaries around now.
func (c Calendar) Anchors(now time.Time) Anchors {
	loc := c.loc()
	today := timeutil.StartOfDay(now, loc)
	return Anchors{
		Now:               now.In(loc),
		TodayStart:        today,
		TodayEnd:          timeutil.AddDays(today, 1, loc),
		YesterdayStart:    timeutil.AddDays(today, -1, loc),
		CurrentWeekStart:  timeutil.StartOfWeek(now, loc, c.WeekStart),
		CurrentMonthStart: timeutil.StartOfMonth(now, loc),
	}
}

// DayPeriod builds the DAY period starting at the local midnight day.
func (c Calendar) DayPeriod(day time.Time, a Anchors) Period {
	loc := c.loc()
	start := timeutil.StartOfDay(day, loc)
	return Period{
		Level: LevelDay,
		Start: start,
		End:   timeutil.AddDays(start, 1, loc),
		Label: timeutil.DayLabel(start, a.TodayStart, loc),
	}
}

// WeekPeriod builds the WEEK period starting at weekStart.
func (c Calendar) WeekPeriod(weekStart time.Time, a Anchors) Period {
	loc := c.loc()
	return Period{
		Level: LevelWeek,
		Start: weekStart,
		End:   timeutil.AddDays(weekStart, 7, loc),
		Label: timeutil.WeekLabel(weekStart, a.CurrentWeekStart, loc),
	}
}

// MonthPeriod builds the MONTH period starting at monthStart.
func (c Calendar) MonthPeriod(monthStart time.Time, a Anchors) Period {
	loc := c.loc()
	return Period{
		Level: LevelMonth,
		Start: monthStart,
		End:   timeutil.AddMonths(monthStart, 1, loc),
		Label: timeutil.MonthLabel(monthStart, a.CurrentMonthStart, loc),
	}
}

// Requirements is the planner's output for one branch at one instant.
type Requirements struct {
	Calendar Calendar
	Anchors

	// Months, Weeks and Days are ascending; Yesterday is always the last day.
	Months []Period
	Weeks  []Period
	Days   []Period

	// Today holds the branch messages of the current local day.
	Today []*conversation.Message
	// Earlier holds the branch messages before today, oldest first.
	Earlier []*conversation.Message

	byDay map[string][]*conversation.Message
}

// Periods returns every required period in context order: months, weeks,
// then days.
func (r *Requirements) Periods() []Period {
	out := make([]Period, 0, len(r.Months)+len(r.Weeks)+len(r.Days))
	out = append(out, r.Months...)
	out = append(out, r.Weeks...)
	return append(out, r.Days...)
}

// MessagesOn returns the branch messages of the local day starting at day.
func (r *Requirements) MessagesOn(day time.Time) []*conversation.Message {
	return r.byDay[timeutil.DayKey(day, r.Calendar.loc())]
}

// ChildDays returns the day starts with messages that an aggregate period
// covers. Weeks only cover days inside the current month; earlier days
// belong to a month summary.
func (r *Requirements) ChildDays(p Period) []time.Time {
	from, to := p.Start, p.End
	if p.Level == LevelWeek && from.Before(r.CurrentMonthStart) {
		from = r.CurrentMonthStart
	}
	if to.After(r.TodayStart) {
		to = r.TodayStart
	}
	var out []time.Time
	for _, d := range r.sortedDays() {
		if !d.Before(from) && d.Before(to) {
			out = append(out, d)
		}
	}
	return out
}

func (r *Requirements) sortedDays() []time.Time {
	loc := r.Calendar.loc()
	days := make([]time.Time, 0, len(r.byDay))
	for key := range r.byDay {
		d, err := timeutil.ParseDayKey(key, loc)
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// ComputeRequirements decides which summary periods a branch needs at now.
//
//   - DAY: every day with messages from the start of the current week
//     through yesterday, plus yesterday itself even when it is empty.
//   - WEEK: every week before the current one that has messages on days
//     from the start of the current month onward.
//   - MONTH: every month before the current one that has messages.
//
// Messages at or after the end of today are ignored.
func ComputeRequirements(messages []*conversation.Message, now time.Time, cal Calendar) *Requirements {
	loc := cal.loc()
	a := cal.Anchors(now)
	r := &Requirements{Calendar: cal, Anchors: a, byDay: map[string][]*conversation.Message{}}

	sorted := append([]*conversation.Message(nil), messages...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	for _, m := range sorted {
		switch {
		case !m.CreatedAt.Before(a.TodayEnd):
			continue
		case !m.CreatedAt.Before(a.TodayStart):
			r.Today = append(r.Today, m)
		default:
			r.Earlier = append(r.Earlier, m)
			key := timeutil.DayKey(m.CreatedAt, loc)
			r.byDay[key] = append(r.byDay[key], m)
		}
	}

	weeks := map[string]time.Time{}
	months := map[string]time.Time{}
	for _, day := range r.sortedDays() {
		if !day.Before(a.CurrentWeekStart) && day.Before(a.YesterdayStart) {
			r.Days = append(r.Days, cal.DayPeriod(day, a))
		}
		if day.Before(a.CurrentWeekStart) && !day.Before(a.CurrentMonthStart) {
			ws := timeutil.StartOfWeek(day, loc, cal.WeekStart)
			weeks[ws.Format(time.RFC3339)] = ws
		}
		if day.Before(a.CurrentMonthStart) {
			ms := timeutil.StartOfMonth(day, loc)
			months[ms.Format(time.RFC3339)] = ms
		}
	}
	r.Days = append(r.Days, cal.DayPeriod(a.YesterdayStart, a))

	for _, ws := range sortedTimes(weeks) {
		r.Weeks = append(r.Weeks, cal.WeekPeriod(ws, a))
	}
	for _, ms := range sortedTimes(months) {
		r.Months = append(r.Months, cal.MonthPeriod(ms, a))
	}
	return r
}

func sortedTimes(m map[string]time.Time) []time.Time {
	out := make([]time.Time, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
