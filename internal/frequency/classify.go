package frequency

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Keys accepted on every shape: the frequency and interval, which the
// shapes check themselves, and the bounds of the series.
var baseKeys = map[string]bool{
	"FREQ":     true,
	"INTERVAL": true,
	"COUNT":    true,
	"UNTIL":    true,
}

// parsedRule is a rule string split into its keys plus the typed values
// rrule-go produced from it.
type parsedRule struct {
	keys map[string]bool
	opt  *rrule.ROption
}

// only reports whether every key of the rule is either a base key or one
// of allowed.
func (p parsedRule) only(allowed ...string) bool {
	for k := range p.keys {
		if baseKeys[k] {
			continue
		}
		found := false
		for _, a := range allowed {
			if k == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// shape matches a rule against the rule option o would produce for start.
type shape struct {
	option Option
	match  func(p parsedRule, start time.Time) bool
}

// shapes are tried in this order; the first match wins.
var shapes = []shape{
	{Daily, matchDaily},
	{WeeklyDay, matchWeeklyDay},
	{MonthlyNthDay, matchMonthlyNthDay},
	{Annually, matchAnnually},
	{EveryWeekday, matchEveryWeekday},
}

// Classify returns the option whose generated rule has the same shape as
// rule when anchored at start. Anything that cannot be matched exactly,
// including an empty or malformed rule, is Custom.
func Classify(start time.Time, rule string) Option {
	p, ok := parseRule(rule)
	if !ok {
		return Custom
	}
	if p.keys["INTERVAL"] && p.opt.Interval != 1 {
		return Custom
	}
	if p.keys["COUNT"] && p.opt.Count <= 0 {
		return Custom
	}
	for _, s := range shapes {
		if s.match(p, start) {
			return s.option
		}
	}
	return Custom
}

func parseRule(rule string) (parsedRule, bool) {
	rule = strings.ToUpper(strings.TrimSpace(rule))
	rule = strings.TrimPrefix(rule, "RRULE:")
	if rule == "" {
		return parsedRule{}, false
	}

	keys := make(map[string]bool)
	for _, part := range strings.Split(rule, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			return parsedRule{}, false
		}
		if keys[kv[0]] {
			return parsedRule{}, false
		}
		keys[kv[0]] = true
	}

	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return parsedRule{}, false
	}
	return parsedRule{keys: keys, opt: opt}, true
}

func matchDaily(p parsedRule, _ time.Time) bool {
	return p.opt.Freq == rrule.DAILY && p.only()
}

func matchWeeklyDay(p parsedRule, start time.Time) bool {
	return p.opt.Freq == rrule.WEEKLY &&
		p.only("BYDAY") &&
		singleDay(p.opt.Byweekday, start.Weekday())
}

func matchMonthlyNthDay(p parsedRule, start time.Time) bool {
	return p.opt.Freq == rrule.MONTHLY &&
		p.only("BYDAY", "BYSETPOS") &&
		singleDay(p.opt.Byweekday, start.Weekday()) &&
		singleInt(p.opt.Bysetpos, NthOrLast(start).SetPos())
}

func matchAnnually(p parsedRule, start time.Time) bool {
	return p.opt.Freq == rrule.YEARLY &&
		p.only("BYMONTH", "BYMONTHDAY") &&
		singleInt(p.opt.Bymonth, int(start.Month())) &&
		singleInt(p.opt.Bymonthday, start.Day())
}

func matchEveryWeekday(p parsedRule, _ time.Time) bool {
	if p.opt.Freq != rrule.WEEKLY || !p.only("BYDAY") {
		return false
	}
	if len(p.opt.Byweekday) != len(workweek) {
		return false
	}
	seen := make(map[rrule.Weekday]bool, len(workweek))
	for _, wd := range p.opt.Byweekday {
		seen[wd] = true
	}
	for _, d := range workweek {
		if !seen[rruleDays[d]] {
			return false
		}
	}
	return true
}

// singleDay reports whether days is exactly one plain (no ordinal prefix)
// weekday equal to want.
func singleDay(days []rrule.Weekday, want time.Weekday) bool {
	return len(days) == 1 && days[0] == rruleDays[want]
}

func singleInt(vals []int, want int) bool {
	return len(vals) == 1 && vals[0] == want
}
