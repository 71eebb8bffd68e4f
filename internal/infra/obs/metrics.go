package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapin_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mapin_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mapin_messages_sent_total",
			Help: "Total chat messages sent",
		},
	)

	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mapin_conversations_created_total",
			Help: "Total conversations created",
		},
	)

	EventsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mapin_events_created_total",
			Help: "Total map events created",
		},
	)

	MediaUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapin_media_uploads_total",
			Help: "Total media uploads",
		},
		[]string{"kind"},
	)

	// Live delivery metrics
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapin_websocket_connections",
			Help: "Open websocket observe connections",
		},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapin_outbox_published_total",
			Help: "Outbox records published to the broker",
		},
		[]string{"result"},
	)
)
