// Package feed keeps a classified view of the recurring events found in the
// configured ICS subscriptions.
package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"freqpick/internal/config"
	"freqpick/internal/frequency"
	"freqpick/internal/ics"
	appLog "freqpick/internal/log"
	"freqpick/internal/metrics"
	"freqpick/internal/model"
)

// maxUpcoming bounds the occurrences attached to each classified event.
const maxUpcoming = 5

// Snapshot is the result of one refresh cycle.
type Snapshot struct {
	RefreshedAt time.Time               `json:"refreshed_at"`
	Timezone    string                  `json:"timezone"`
	Events      []model.ClassifiedEvent `json:"events"`
	// Errors lists per-source fetch/parse failures of the cycle.
	Errors []string `json:"errors,omitempty"`
}

// Fetcher is the part of *ics.Fetcher the refresher needs.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error)
}

// Refresher periodically fetches the configured feeds, classifies every
// recurring event and keeps the latest Snapshot.
type Refresher struct {
	sources  []ics.Source
	fetcher  Fetcher
	loc      *time.Location
	schedule string
	horizon  time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewRefresher builds a Refresher from cfg. loc is the zone that recurring
// events are expanded into and the cron schedule is evaluated in.
func NewRefresher(cfg *config.Config, loc *time.Location, fetcher Fetcher) *Refresher {
	sources := make([]ics.Source, 0, len(cfg.ICS))
	for _, c := range cfg.ICS {
		if c.URL == "" {
			continue
		}
		sources = append(sources, ics.Source{ID: c.SourceID(), URL: c.URL})
	}
	return &Refresher{
		sources:  sources,
		fetcher:  fetcher,
		loc:      loc,
		schedule: cfg.RefreshCron,
		horizon:  time.Duration(cfg.HorizonDays) * 24 * time.Hour,
		now:      time.Now,
	}
}

// Snapshot returns the most recent snapshot, or nil before the first
// refresh.
func (r *Refresher) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Run refreshes once, then on every tick of the cron schedule until ctx is
// canceled.
func (r *Refresher) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(r.loc), cron.WithLogger(cronLogger{}))
	if _, err := c.AddJob(r.schedule, r.job(ctx)); err != nil {
		return errors.Wrapf(err, "feed: schedule %q", r.schedule)
	}

	if _, err := r.Refresh(ctx); err != nil {
		appLog.Error("initial feed refresh failed", err)
	}

	c.Start()
	appLog.Info("feed refresher started", "schedule", r.schedule, "sources", len(r.sources))
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// job is the scheduled refresh. A tick that fires while the previous cycle
// is still running is skipped, so two cycles never share the fetch cache.
func (r *Refresher) job(ctx context.Context) cron.Job {
	return cron.NewChain(cron.SkipIfStillRunning(cronLogger{})).Then(cron.FuncJob(func() {
		if _, err := r.Refresh(ctx); err != nil {
			appLog.Error("feed refresh failed", err)
		}
	}))
}

// cronLogger routes robfig/cron messages to the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}

// Refresh runs one fetch, parse and classify cycle and stores the result.
func (r *Refresher) Refresh(ctx context.Context) (*Snapshot, error) {
	began := time.Now()
	defer func() {
		metrics.FeedRefreshDuration.Observe(time.Since(began).Seconds())
	}()

	now := r.now().In(r.loc)
	snap := &Snapshot{
		RefreshedAt: now,
		Timezone:    r.loc.String(),
		Events:      []model.ClassifiedEvent{},
	}

	results, fetchErrs := r.fetcher.FetchAll(ctx, r.sources)
	for _, err := range fetchErrs {
		source := "unknown"
		var se *ics.SourceError
		if errors.As(err, &se) {
			source = se.Source.ID
		}
		metrics.FeedFetchErrors.WithLabelValues(source).Inc()
		snap.Errors = append(snap.Errors, err.Error())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var parsed []ics.ParsedEvent
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body, r.loc)
		if err != nil {
			snap.Errors = append(snap.Errors, errors.Wrapf(err, "ics source %s", res.Source.ID).Error())
			continue
		}
		parsed = append(parsed, events...)
	}

	snap.Events = r.classify(parsed, now)

	r.mu.Lock()
	r.snapshot = snap
	r.mu.Unlock()

	appLog.Info("feed refreshed", "events", len(snap.Events), "errors", len(snap.Errors))
	return snap, nil
}

// classify labels every recurring base event and attaches its upcoming
// occurrences in [now, now+horizon].
func (r *Refresher) classify(events []ics.ParsedEvent, now time.Time) []model.ClassifiedEvent {
	expanded, err := ics.ExpandOccurrences(events, ics.ExpandConfig{
		DisplayLocation: r.loc,
		RangeStart:      now,
		RangeEnd:        now.Add(r.horizon),
	})
	if err != nil {
		appLog.Error("feed expand failed", err)
	}
	upcoming := make(map[string][]time.Time)
	for _, occ := range expanded.Occurrences {
		key := occ.SourceID + "\x00" + occ.UID
		upcoming[key] = append(upcoming[key], occ.Start)
	}

	out := make([]model.ClassifiedEvent, 0)
	for _, ev := range events {
		if ev.IsOverride || ev.RRule == "" {
			continue
		}
		// The rule is evaluated in DTSTART's own zone.
		start := ev.Start
		option := frequency.Classify(start, ev.RRule)
		metrics.Classifications.WithLabelValues(string(option), "feed").Inc()

		next := upcoming[ev.SourceID+"\x00"+ev.UID]
		sort.Slice(next, func(i, j int) bool { return next[i].Before(next[j]) })
		if len(next) > maxUpcoming {
			next = next[:maxUpcoming]
		}

		out = append(out, model.ClassifiedEvent{
			SourceID:  ev.SourceID,
			UID:       ev.UID,
			Summary:   ev.Summary,
			Start:     start,
			RRule:     ev.RRule,
			Frequency: string(option),
			Label:     frequency.LabelFor(option, start),
			Upcoming:  next,
		})
	}
	return out
}
