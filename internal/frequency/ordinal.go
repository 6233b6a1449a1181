package frequency

import "time"

// Ordinal locates a date among the occurrences of its weekday in its month.
type Ordinal struct {
	// Position is 1 for the first such weekday of the month, up to 5.
	Position int
	// IsLast is true when no later occurrence of the weekday exists in the
	// same month.
	IsLast bool
}

// SetPos returns the BYSETPOS value for the ordinal: -1 for the last
// occurrence, Position otherwise.
func (o Ordinal) SetPos() int {
	if o.IsLast {
		return -1
	}
	return o.Position
}

// NthOrLast computes the Ordinal of t in t's own location.
func NthOrLast(t time.Time) Ordinal {
	day := t.Day()
	return Ordinal{
		Position: (day-1)/7 + 1,
		IsLast:   day+7 > daysIn(t.Year(), t.Month(), t.Location()),
	}
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 12, 0, 0, 0, loc).Day()
}
