package generic

import (
	"time"
)

// =============================================================================
// CALENDAR DAYS - Bucketing in the profile's local day boundary
// =============================================================================

// DayLayout is the wire format for calendar days ("2025-03-14").
const DayLayout = "2006-01-02"

// StartOfDay returns local midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(orUTC(loc))
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

// SameDay reports whether a and b fall on the same calendar day in loc.
// Two instants a few hours apart can be different days in one zone and the
// same day in another; UTC midnight is never used implicitly.
func SameDay(a, b time.Time, loc *time.Location) bool {
	la, lb := a.In(orUTC(loc)), b.In(orUTC(loc))
	return la.Year() == lb.Year() && la.YearDay() == lb.YearDay()
}

// ParseDay parses a DayLayout string as local midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DayLayout, s, orUTC(loc))
}

// FormatDay renders t's calendar day in loc.
func FormatDay(t time.Time, loc *time.Location) string {
	return t.In(orUTC(loc)).Format(DayLayout)
}

// OnDay places the wall-clock time of now onto day's calendar date in loc.
// Used to stamp transactions written for a day other than today while
// keeping timestamps ordered within the day.
func OnDay(day, now time.Time, loc *time.Location) time.Time {
	d := day.In(orUTC(loc))
	n := now.In(orUTC(loc))
	return time.Date(d.Year(), d.Month(), d.Day(), n.Hour(), n.Minute(), n.Second(), n.Nanosecond(), d.Location())
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
