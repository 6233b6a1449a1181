package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"freqpick/internal/frequency"
	appLog "freqpick/internal/log"
)

var newYork = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func init() {
	appLog.SetLogger(zap.NewNop())
}

const sampleFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup\r\n" +
	"DTSTAMP:20230701T000000Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"DTSTART;TZID=America/New_York:20230717T090000\r\n" +
	"DTEND;TZID=America/New_York:20230717T091500\r\n" +
	"RRULE:FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR;INTERVAL=1\r\n" +
	"EXDATE;TZID=America/New_York:20230719T090000\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup\r\n" +
	"DTSTAMP:20230701T000000Z\r\n" +
	"SUMMARY:Standup (moved)\r\n" +
	"RECURRENCE-ID;TZID=America/New_York:20230720T090000\r\n" +
	"DTSTART;TZID=America/New_York:20230720T100000\r\n" +
	"DTEND;TZID=America/New_York:20230720T101500\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:holiday\r\n" +
	"DTSTAMP:20230701T000000Z\r\n" +
	"SUMMARY:Holiday\r\n" +
	"DTSTART;VALUE=DATE:20230704\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTAMP:20230701T000000Z\r\n" +
	"SUMMARY:No UID\r\n" +
	"DTSTART:20230704T000000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICS(t *testing.T) {
	events, err := ParseICS(Source{ID: "work"}, []byte(sampleFeed), newYork)
	require.NoError(t, err)
	require.Len(t, events, 3, "event without UID is skipped")

	standup := events[0]
	assert.Equal(t, "work", standup.SourceID)
	assert.Equal(t, "Standup", standup.Summary)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR;INTERVAL=1", standup.RRule)
	assert.Equal(t, time.Monday, standup.Start.Weekday())
	assert.Equal(t, 9, standup.Start.Hour())
	require.Len(t, standup.ExDates, 1)
	assert.Equal(t, 19, standup.ExDates[0].Day())
	assert.False(t, standup.IsOverride)

	moved := events[1]
	assert.True(t, moved.IsOverride)
	require.NotNil(t, moved.Recurrence)

	holiday := events[2]
	assert.True(t, holiday.AllDay)
	assert.Empty(t, holiday.RRule)

	_, err = ParseICS(Source{ID: "empty"}, nil, newYork)
	assert.Error(t, err)
}

func TestExpandOccurrences(t *testing.T) {
	events, err := ParseICS(Source{ID: "work"}, []byte(sampleFeed), newYork)
	require.NoError(t, err)

	res, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: newYork,
		RangeStart:      time.Date(2023, 7, 17, 0, 0, 0, 0, newYork),
		RangeEnd:        time.Date(2023, 7, 22, 0, 0, 0, 0, newYork),
	})
	require.NoError(t, err)

	var standups []string
	for _, occ := range res.Occurrences {
		if occ.UID == "standup" {
			standups = append(standups, occ.Start.Format("Mon 15:04"))
		}
	}
	// Wednesday is excluded, Thursday is moved to 10:00.
	assert.Equal(t, []string{"Mon 09:00", "Tue 09:00", "Thu 10:00", "Fri 09:00"}, standups)
	assert.Empty(t, res.TruncatedEvents)

	capped, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation:        newYork,
		RangeStart:             time.Date(2023, 7, 17, 0, 0, 0, 0, newYork),
		RangeEnd:               time.Date(2023, 8, 17, 0, 0, 0, 0, newYork),
		MaxOccurrencesPerEvent: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"standup"}, capped.TruncatedEvents)

	_, err = ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: newYork,
		RangeStart:      time.Date(2023, 8, 1, 0, 0, 0, 0, newYork),
		RangeEnd:        time.Date(2023, 7, 1, 0, 0, 0, 0, newYork),
	})
	assert.Error(t, err)
}

func TestParseICS_FloatingValuesIgnoreHostZone(t *testing.T) {
	host := time.Local
	time.Local = mustLoad("Asia/Tokyo")
	t.Cleanup(func() { time.Local = host })

	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:bins\r\nDTSTAMP:20230701T000000Z\r\n" +
		"DTSTART;VALUE=DATE:20230731\r\nDTEND;VALUE=DATE:20230801\r\n" +
		"RRULE:FREQ=WEEKLY;BYDAY=MO;COUNT=2\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:gym\r\nDTSTAMP:20230701T000000Z\r\n" +
		"DTSTART:20230731T070000\r\nDTEND:20230731T080000\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	events, err := ParseICS(Source{ID: "home"}, []byte(body), newYork)
	require.NoError(t, err)
	require.Len(t, events, 2)

	bins := events[0]
	assert.True(t, bins.AllDay)
	assert.Equal(t, newYork, bins.Start.Location())
	assert.Equal(t, time.Monday, bins.Start.Weekday())
	assert.True(t, bins.End.Equal(time.Date(2023, 8, 1, 0, 0, 0, 0, newYork)))

	gym := events[1]
	assert.True(t, gym.Start.Equal(time.Date(2023, 7, 31, 7, 0, 0, 0, newYork)))
	assert.True(t, gym.End.Equal(time.Date(2023, 7, 31, 8, 0, 0, 0, newYork)))

	res, err := ExpandOccurrences(events[:1], ExpandConfig{
		DisplayLocation: newYork,
		RangeStart:      time.Date(2023, 7, 30, 0, 0, 0, 0, newYork),
		RangeEnd:        time.Date(2023, 8, 14, 0, 0, 0, 0, newYork),
	})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 2)
	for _, occ := range res.Occurrences {
		assert.Equal(t, time.Monday, occ.Start.Weekday(), occ.Start.String())
		assert.Equal(t, 0, occ.Start.Hour())
	}
	assert.Equal(t, frequency.WeeklyDay, frequency.Classify(bins.Start, bins.RRule))
}

func TestPreview(t *testing.T) {
	start := time.Date(2023, 7, 26, 9, 0, 0, 0, newYork)
	rule, ok := frequency.GenerateRule(frequency.MonthlyNthDay, start)
	require.True(t, ok)

	got, err := Preview(rule, start, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2023-07-26", got[0].Format("2006-01-02"))
	assert.Equal(t, "2023-08-30", got[1].Format("2006-01-02"))
	assert.Equal(t, "2023-09-27", got[2].Format("2006-01-02"))
	for _, g := range got {
		assert.Equal(t, 9, g.Hour())
	}

	// COUNT bounds the series below the requested limit.
	annual, _ := frequency.GenerateRule(frequency.Annually, start)
	got, err = Preview(annual, start, 100)
	require.NoError(t, err)
	assert.Len(t, got, frequency.YearlyCount)

	_, err = Preview("FREQ=NEVER", start, 3)
	assert.Error(t, err)
	_, err = Preview(rule, start, 0)
	assert.Error(t, err)
}

func TestExportSeries_RoundTrip(t *testing.T) {
	fixed := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)
	for _, o := range frequency.Options() {
		if !o.Repeats() {
			continue
		}
		t.Run(string(o), func(t *testing.T) {
			start := time.Date(2023, 7, 26, 23, 30, 0, 0, newYork)
			body, err := ExportSeries(SeriesRequest{
				Summary:  "Office hours",
				Start:    start,
				Duration: time.Hour,
				Option:   o,
				UID:      "fixed-uid",
				Now:      func() time.Time { return fixed },
			})
			require.NoError(t, err)
			assert.Contains(t, body, "TZID=America/New_York")

			events, err := ParseICS(Source{ID: "export"}, []byte(body), newYork)
			require.NoError(t, err)
			require.Len(t, events, 1)
			ev := events[0]
			assert.Equal(t, "fixed-uid", ev.UID)
			assert.Equal(t, "Office hours", ev.Summary)
			assert.True(t, start.Equal(ev.Start))
			assert.Equal(t, o, frequency.Classify(ev.Start, ev.RRule))
		})
	}
}

func TestExportSeries_NonRepeating(t *testing.T) {
	start := time.Date(2023, 7, 26, 9, 0, 0, 0, time.UTC)

	body, err := ExportSeries(SeriesRequest{Start: start, Option: frequency.NotRepeat})
	require.NoError(t, err)
	assert.NotContains(t, body, "RRULE")
	assert.Contains(t, body, "DTSTART:20230726T090000Z")

	_, err = ExportSeries(SeriesRequest{Start: start, Option: frequency.Custom})
	assert.Error(t, err)
	_, err = ExportSeries(SeriesRequest{Option: frequency.Daily})
	assert.Error(t, err)
}

func TestFetcher_CachesAndRevalidates(t *testing.T) {
	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir()).WithClient(srv.Client())
	src := Source{ID: "work", URL: srv.URL + "/private.ics?token=x"}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.EqualValues(t, 2, hits.Load())
	assert.EqualValues(t, 1, notModified.Load())
}

func TestFetcher_FetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.ics") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir()).WithClient(srv.Client())
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "a", URL: srv.URL + "/a.ics"},
		{ID: "missing", URL: srv.URL + "/missing.ics"},
		{ID: "b", URL: srv.URL + "/b.ics"},
		{ID: "blank"},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Source.ID)
	assert.Equal(t, "b", results[1].Source.ID)

	require.Len(t, errs, 2)
	var se *SourceError
	require.ErrorAs(t, errs[0], &se)
	assert.Equal(t, "missing", se.Source.ID)
	require.ErrorAs(t, errs[1], &se)
	assert.Equal(t, "blank", se.Source.ID)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/path/private.ics?token=abcd"))
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com"))
	assert.Equal(t, "ics://...(redacted)", redactURL("example.com/feed"))
}
