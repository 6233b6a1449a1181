package frequency

import (
	"fmt"
	"time"
)

// Choice is one selectable entry for a given reference date.
type Choice struct {
	ID    Option `json:"id"`
	Label string `json:"label"`
}

var ordinalWords = map[int]string{
	1: "first",
	2: "second",
	3: "third",
	4: "fourth",
}

// GenerateOptions returns the seven picker entries for ref, always in the
// order of Options().
func GenerateOptions(ref time.Time) []Choice {
	out := make([]Choice, 0, len(allOptions))
	for _, o := range allOptions {
		out = append(out, Choice{ID: o, Label: LabelFor(o, ref)})
	}
	return out
}

// LabelFor returns the human-facing label of a single option. Unknown
// options get an empty label.
func LabelFor(o Option, ref time.Time) string {
	switch o {
	case NotRepeat:
		return "Does not repeat"
	case Daily:
		return "Daily"
	case WeeklyDay:
		return "Weekly on " + ref.Weekday().String()
	case MonthlyNthDay:
		return fmt.Sprintf("Monthly on %s %s", ordinalWord(NthOrLast(ref)), ref.Weekday())
	case Annually:
		return fmt.Sprintf("Annually on %s %d", ref.Month(), ref.Day())
	case EveryWeekday:
		return "Every weekday (Monday to Friday)"
	case Custom:
		return "Custom..."
	default:
		return ""
	}
}

// ordinalWord renders "last" whenever the date is the final occurrence of its
// weekday, even if it is also the fourth.
func ordinalWord(o Ordinal) string {
	if o.IsLast {
		return "last"
	}
	return ordinalWords[o.Position]
}
