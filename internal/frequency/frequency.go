// Package frequency translates between the discrete "repeat" options shown
// in an event editor and iCalendar RRULE strings.
//
// Every computation is done in the Location carried by the time.Time that is
// passed in. There is no package-level default zone: callers choose the zone
// when they construct the reference date (see internal/timezone).
package frequency

import (
	"github.com/pkg/errors"
)

// Option identifies one entry of the frequency picker.
type Option string

const (
	NotRepeat     Option = "not-repeat"
	Daily         Option = "daily"
	WeeklyDay     Option = "weekly-day"
	MonthlyNthDay Option = "monthly-nth-day"
	Annually      Option = "annually"
	EveryWeekday  Option = "every-weekday"
	Custom        Option = "custom"
)

// allOptions is the fixed display order.
var allOptions = []Option{
	NotRepeat,
	Daily,
	WeeklyDay,
	MonthlyNthDay,
	Annually,
	EveryWeekday,
	Custom,
}

// Options returns every option id in display order.
func Options() []Option {
	out := make([]Option, len(allOptions))
	copy(out, allOptions)
	return out
}

// ParseOption maps an option id (as used on the wire) to an Option.
func ParseOption(s string) (Option, error) {
	for _, o := range allOptions {
		if string(o) == s {
			return o, nil
		}
	}
	return "", errors.Errorf("frequency: unknown option %q", s)
}

// Repeats reports whether the option produces a recurrence rule.
func (o Option) Repeats() bool {
	switch o {
	case Daily, WeeklyDay, MonthlyNthDay, Annually, EveryWeekday:
		return true
	default:
		return false
	}
}

func (o Option) String() string {
	return string(o)
}
