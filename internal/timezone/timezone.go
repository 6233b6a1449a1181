// Package timezone resolves IANA zone names and parses reference dates into
// an explicit zone. Nothing here reads or mutates a process-wide default.
package timezone

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ParseTimezone parses an IANA timezone identifier (e.g. "America/New_York").
// An empty name and "UTC" both resolve to UTC.
func ParseTimezone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, errors.Wrapf(err, "invalid timezone %q", name)
	}
	return loc, nil
}

var localLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseReference parses a reference date or event start.
//
//   - Zone-less values ("2023-07-17", "2023-07-17T09:00:00") are read as wall
//     clock time in loc.
//   - RFC 3339 values keep their instant and are converted into loc, so the
//     weekday and day of month are those seen in loc.
func ParseReference(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		return time.Time{}, errors.New("timezone: nil location")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("timezone: empty date")
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("timezone: unrecognized date %q", value)
}
