package frequency

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Occurrence caps written into generated rules. They bound the series length
// per frequency class and are not user-configurable.
const (
	DailyCount   = 200
	WeeklyCount  = 52
	MonthlyCount = 12
	YearlyCount  = 5
)

var dayCodes = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

var rruleDays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// workweek is the BYDAY list of every-weekday rules, in emitted order.
var workweek = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// DayCode returns the two-letter iCalendar code of a weekday.
func DayCode(d time.Weekday) string {
	return dayCodes[d]
}

// field is a single KEY=VALUE pair of a rule. Generated rules keep their
// fields in slice order, which is part of the stored format.
type field struct {
	key   string
	value string
}

type fields []field

func (fs fields) String() string {
	parts := make([]string, 0, len(fs))
	for _, f := range fs {
		parts = append(parts, f.key+"="+f.value)
	}
	return strings.Join(parts, ";")
}

// GenerateRule returns the RRULE for option o anchored at ref. ok is false
// for not-repeat, custom and unknown options, which have no rule.
func GenerateRule(o Option, ref time.Time) (rule string, ok bool) {
	fs := ruleFields(o, ref)
	if fs == nil {
		return "", false
	}
	return fs.String(), true
}

func ruleFields(o Option, ref time.Time) fields {
	day := DayCode(ref.Weekday())

	switch o {
	case Daily:
		return fields{
			{"FREQ", "DAILY"},
			{"INTERVAL", "1"},
			{"COUNT", strconv.Itoa(DailyCount)},
		}
	case WeeklyDay:
		return fields{
			{"FREQ", "WEEKLY"},
			{"BYDAY", day},
			{"INTERVAL", "1"},
			{"COUNT", strconv.Itoa(WeeklyCount)},
		}
	case MonthlyNthDay:
		return fields{
			{"FREQ", "MONTHLY"},
			{"BYSETPOS", strconv.Itoa(NthOrLast(ref).SetPos())},
			{"BYDAY", day},
			{"INTERVAL", "1"},
			{"COUNT", strconv.Itoa(MonthlyCount)},
		}
	case Annually:
		return fields{
			{"FREQ", "YEARLY"},
			{"BYMONTH", fmt.Sprintf("%02d", int(ref.Month()))},
			{"BYMONTHDAY", fmt.Sprintf("%02d", ref.Day())},
			{"INTERVAL", "1"},
			{"COUNT", strconv.Itoa(YearlyCount)},
		}
	case EveryWeekday:
		codes := make([]string, 0, len(workweek))
		for _, d := range workweek {
			codes = append(codes, DayCode(d))
		}
		return fields{
			{"FREQ", "WEEKLY"},
			{"BYDAY", strings.Join(codes, ",")},
			{"INTERVAL", "1"},
			{"COUNT", strconv.Itoa(WeeklyCount)},
		}
	default:
		return nil
	}
}
