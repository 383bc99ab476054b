// Package interval implements the date arithmetic shared by every part of
// the occupancy engine.  A stay occupies whole calendar days: the start date
// is inclusive, the end date is inclusive, and a nil end date means the stay
// is open-ended and treated as ongoing as of a caller-supplied reference
// date.  All functions are pure; callers must pass dates normalized to UTC
// midnight (see Date and ParseDate).
package interval

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// Date builds a normalized calendar date at UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Normalize truncates a timestamp to its calendar date at UTC midnight.
func Normalize(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a normalized date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// EffectiveEnd resolves the end of a possibly open-ended interval.  When end
// is nil the interval is considered to run through asOf.
func EffectiveEnd(end *time.Time, asOf time.Time) time.Time {
	if end != nil {
		return *end
	}
	return asOf
}

// Overlaps reports whether two inclusive date intervals share at least one
// day.  Open ends are resolved against asOf, so an open-ended interval
// overlaps everything from its start through asOf and beyond a future start
// never begins "before" it ends.
func Overlaps(aStart time.Time, aEnd *time.Time, bStart time.Time, bEnd *time.Time, asOf time.Time) bool {
	return !aStart.After(EffectiveEnd(bEnd, asOf)) && !bStart.After(EffectiveEnd(aEnd, asOf))
}

// DaysInclusive counts the days in [from, to], both bounds included.
// Returns zero when to precedes from.
func DaysInclusive(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}

// DurationDays is the inclusive day count of an interval, resolving an open
// end against asOf.
func DurationDays(start time.Time, end *time.Time, asOf time.Time) int {
	return DaysInclusive(start, EffectiveEnd(end, asOf))
}

// ClampedOverlapDays counts the days of an interval that fall inside the
// reporting window [winStart, winEnd].  Open ends are resolved against the
// window end.  Returns zero when the interval and window do not intersect.
func ClampedOverlapDays(start time.Time, end *time.Time, winStart, winEnd time.Time) int {
	from := start
	if winStart.After(from) {
		from = winStart
	}
	to := EffectiveEnd(end, winEnd)
	if winEnd.Before(to) {
		to = winEnd
	}
	return DaysInclusive(from, to)
}
