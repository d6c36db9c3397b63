// ABOUTME: Day, week, and month boundaries for date-scoped article queries
// ABOUTME: All boundaries are computed in the location of the reference time

package timeutil

import "time"

// StartOfDay returns midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfToday returns midnight of the current day in local time.
func StartOfToday() time.Time {
	return StartOfDay(time.Now())
}

// StartOfWeek returns midnight of the Sunday starting t's week.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// ParsePeriod converts "today", "yesterday", "week", or "month" into the
// start of that period relative to now.
func ParsePeriod(period string, now time.Time) (time.Time, bool) {
	switch period {
	case "today":
		return StartOfDay(now), true
	case "yesterday":
		return StartOfDay(now).AddDate(0, 0, -1), true
	case "week":
		return StartOfWeek(now), true
	case "month":
		return StartOfMonth(now), true
	default:
		return time.Time{}, false
	}
}
