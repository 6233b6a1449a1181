package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"freqpick/internal/frequency"
)

const productID = "-//freqpick//Frequency Picker//EN"

// SeriesRequest describes one event to export, repeating per Option.
type SeriesRequest struct {
	Summary     string
	Description string
	Location    string

	// Start anchors both the event and its RRULE; its Location is written
	// as TZID unless it is UTC.
	Start    time.Time
	Duration time.Duration

	Option frequency.Option

	// UID defaults to a random UUID.
	UID string
	// Now stamps DTSTAMP; defaults to time.Now.
	Now func() time.Time
}

// ExportSeries renders req as a VCALENDAR with a single VEVENT. The RRULE is
// the one frequency.GenerateRule produces for req.Option; not-repeat exports
// a plain event. Custom and unknown options have no rule to write and are
// rejected.
func ExportSeries(req SeriesRequest) (string, error) {
	if req.Start.IsZero() {
		return "", errors.New("export: start is required")
	}
	if req.Duration < 0 {
		return "", errors.New("export: negative duration")
	}

	rule, ok := frequency.GenerateRule(req.Option, req.Start)
	if !ok && req.Option != frequency.NotRepeat {
		return "", errors.Errorf("export: option %q has no recurrence rule", req.Option)
	}

	uid := req.UID
	if uid == "" {
		uid = uuid.NewString()
	}
	now := time.Now
	if req.Now != nil {
		now = req.Now
	}

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)

	ev := cal.AddEvent(uid)
	ev.SetDtStampTime(now())
	setEventTime(ev, ical.ComponentPropertyDtStart, req.Start)
	setEventTime(ev, ical.ComponentPropertyDtEnd, req.Start.Add(req.Duration))
	if req.Summary != "" {
		ev.SetSummary(req.Summary)
	}
	if req.Description != "" {
		ev.SetDescription(req.Description)
	}
	if req.Location != "" {
		ev.SetLocation(req.Location)
	}
	if ok {
		ev.SetProperty(ical.ComponentPropertyRrule, rule)
	}

	return cal.Serialize(), nil
}

// setEventTime writes a DATE-TIME in the value's own zone so that readers
// see the same weekday and day of month the rule was generated for.
func setEventTime(ev *ical.VEvent, prop ical.ComponentProperty, t time.Time) {
	if t.Location() == time.UTC {
		ev.SetProperty(prop, t.Format("20060102T150405Z"))
		return
	}
	ev.SetProperty(prop, t.Format("20060102T150405"), ical.WithTZID(t.Location().String()))
}
