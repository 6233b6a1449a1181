package model

import "time"

// Event is a calendar event as read from a feed, before recurrence
// expansion.
type Event struct {
	SourceID string // calendar source ID (config ICS ID)
	UID      string // iCalendar UID

	Summary     string
	Description string
	Location    string

	AllDay bool

	// Start/End in the event's own timezone.
	Start time.Time
	End   time.Time

	// RRule is the raw RRULE value, empty for single events.
	RRule string
}

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string
	UID      string

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary  string
	Location string
	AllDay   bool

	// Start / End are in the display timezone.
	Start time.Time
	End   time.Time
}

// ClassifiedEvent is a recurring feed event together with the picker option
// its RRULE corresponds to.
type ClassifiedEvent struct {
	SourceID string    `json:"source_id"`
	UID      string    `json:"uid"`
	Summary  string    `json:"summary"`
	Start    time.Time `json:"start"`
	RRule    string    `json:"rrule"`

	// Frequency is the option id, "custom" when no option matches.
	Frequency string `json:"frequency"`
	Label     string `json:"label"`

	Upcoming []time.Time `json:"upcoming,omitempty"`
}
