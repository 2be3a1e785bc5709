package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	OutboxPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_published_total",
			Help: "Total number of outbox records published to the broker",
		},
		[]string{"service", "topic"},
	)

	OutboxPublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_failures_total",
			Help: "Total number of outbox publish failures",
		},
		[]string{"service", "topic"},
	)

	OutboxTerminalFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_terminal_failures_total",
			Help: "Total number of outbox records that exhausted their retries",
		},
		[]string{"service", "topic"},
	)

	OutboxTickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outbox_tick_duration_seconds",
			Help:    "Duration of outbox relay ticks in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	ConsumerEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumer_events_total",
			Help: "Total number of inbound events by outcome",
		},
		[]string{"service", "topic", "outcome"},
	)
)
