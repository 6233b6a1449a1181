package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RulesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freqpick_rules_generated_total",
			Help: "Recurrence rules generated, by frequency option",
		},
		[]string{"option"},
	)

	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freqpick_classifications_total",
			Help: "Recurrence rules classified, by resulting frequency option",
		},
		[]string{"option", "origin"},
	)

	FeedRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "freqpick_feed_refresh_duration_seconds",
			Help: "Duration of a full feed fetch, parse and classify cycle",
		},
	)

	FeedFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freqpick_feed_fetch_errors_total",
			Help: "Feed fetch failures, by source",
		},
		[]string{"source"},
	)
)
