// Package timeutil does the calendar arithmetic behind rolling summaries:
// zone resolution, midnight-aligned day/week/month boundaries and the
// human-readable labels attached to summary periods.
//
// All boundaries are computed with time.Date in the target location, so
// days that are 23 or 25 hours long across DST transitions still start at
// local midnight.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

const (
	dayKeyLayout   = "2006-01-02"
	shortDayLayout = "Jan 2, 2006"
	monthLayout    = "January 2006"
)

// ResolveLocation loads an IANA zone. Empty names resolve to UTC.
func ResolveLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utc") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// LocationOrUTC is ResolveLocation with every failure mapped to UTC.
func LocationOrUTC(name string) *time.Location {
	loc, err := ResolveLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseWeekday accepts full or three-letter English day names.
func ParseWeekday(s string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if v == name || v == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// AddDays moves a midnight boundary by n calendar days in loc.
func AddDays(day time.Time, n int, loc *time.Location) time.Time {
	lt := day.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day()+n, 0, 0, 0, 0, loc)
}

// StartOfWeek returns the most recent weekStart midnight at or before t.
func StartOfWeek(t time.Time, loc *time.Location, weekStart time.Weekday) time.Time {
	day := StartOfDay(t, loc)
	back := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return AddDays(day, -back, loc)
}

// StartOfMonth returns local midnight of the first day of t's month.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), 1, 0, 0, 0, 0, loc)
}

// AddMonths moves a month boundary by n months in loc.
func AddMonths(month time.Time, n int, loc *time.Location) time.Time {
	lt := month.In(loc)
	return time.Date(lt.Year(), lt.Month()+time.Month(n), 1, 0, 0, 0, 0, loc)
}

// DayKey formats the local calendar day of t as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayKeyLayout)
}

// ParseDayKey is the inverse of DayKey.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dayKeyLayout, key, loc)
}

// DayLabel names a day period relative to today.
// "Yesterday (Oct 14, 2025)" or "Monday (Oct 13, 2025)".
func DayLabel(day, today time.Time, loc *time.Location) string {
	d := day.In(loc)
	if AddDays(today, -1, loc).Equal(StartOfDay(d, loc)) {
		return fmt.Sprintf("Yesterday (%s)", d.Format(shortDayLayout))
	}
	return fmt.Sprintf("%s (%s)", d.Weekday(), d.Format(shortDayLayout))
}

// WeekLabel names a week period. Only the week directly before the
// current one is "Last Week".
func WeekLabel(weekStart, currentWeekStart time.Time, loc *time.Location) string {
	ws := weekStart.In(loc)
	if AddDays(currentWeekStart, -7, loc).Equal(ws) {
		last := AddDays(ws, 6, loc)
		return fmt.Sprintf("Last Week (%s - %s)", ws.Format("Jan 2"), last.Format(shortDayLayout))
	}
	return fmt.Sprintf("Week of %s", ws.Format(shortDayLayout))
}

// MonthLabel names a month period. Only the month directly before the
// current one is "Last Month".
func MonthLabel(monthStart, currentMonthStart time.Time, loc *time.Location) string {
	ms := monthStart.In(loc)
	if AddMonths(currentMonthStart, -1, loc).Equal(ms) {
		return fmt.Sprintf("Last Month (%s)", ms.Format(monthLayout))
	}
	return ms.Format(monthLayout)
}
