package session

import (
	"time"

	"github.com/clippy-oss/homie/tranzio/internal/domain"
)

const (
	LabelToday     = "Today"
	LabelYesterday = "Yesterday"

	// LongDateLayout renders e.g. "Monday, October 19, 2026".
	LongDateLayout = "Monday, January 2, 2006"
	// TimeLayout renders message times, e.g. "03:04 PM".
	TimeLayout = "03:04 PM"
)

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	y1, m1, d1 := a.In(loc).Date()
	y2, m2, d2 := b.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// ShouldInsertDateSeparator decides whether a message stamped ts needs a
// separator in front of it, given the last entry of the rendered log.
func ShouldInsertDateSeparator(ts time.Time, last domain.LogEntry, loc *time.Location) bool {
	switch e := last.(type) {
	case nil:
		return true
	case *domain.DateSeparator:
		return false
	case *domain.MessageEntry:
		if e.Message == nil || e.Message.Timestamp.IsZero() {
			return true
		}
		return !SameDay(e.Message.Timestamp, ts, loc)
	default:
		return true
	}
}

// FormatRelativeDate labels date relative to now: "Today", "Yesterday" or
// the full weekday, month, day and year.
func FormatRelativeDate(date, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	n := now.In(loc)
	if SameDay(date, n, loc) {
		return LabelToday
	}
	yesterday := time.Date(n.Year(), n.Month(), n.Day()-1, 12, 0, 0, 0, loc)
	if SameDay(date, yesterday, loc) {
		return LabelYesterday
	}
	return date.In(loc).Format(LongDateLayout)
}

// FormatTime renders the time-of-day shown next to each message.
func FormatTime(ts time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return ts.In(loc).Format(TimeLayout)
}
