// Package metrics defines the Prometheus collectors for the live pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "live_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	PollFixtures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_poll_fixtures_total",
			Help: "Fixture fetch outcomes per poll tick",
		},
		[]string{"outcome"}, // fetched | rate_limited | error
	)

	EventsClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_events_classified_total",
			Help: "Notification events emitted by the classifier",
		},
		[]string{"kind"},
	)

	LedgerClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_ledger_claims_total",
			Help: "Dedup ledger claim attempts",
		},
		[]string{"result"}, // claimed | duplicate | error
	)

	PushSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_push_sends_total",
			Help: "Push delivery attempts by outcome",
		},
		[]string{"kind", "outcome"}, // sent | rejected | failed
	)
)

func Init() {
	prometheus.MustRegister(
		HTTPRequests, RequestDuration,
		PollFixtures, EventsClassified, LedgerClaims, PushSends,
	)
}
