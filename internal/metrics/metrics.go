package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook ingestion metrics
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_webhook_deliveries_total",
			Help: "Total number of webhook deliveries received",
		},
		[]string{"kind", "status"},
	)

	SignatureFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookbridge_webhook_signature_failures_total",
			Help: "Total number of deliveries rejected for bad or missing signatures",
		},
	)

	DeliveryBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookbridge_webhook_delivery_bytes_total",
			Help: "Total bytes of webhook payloads received",
		},
	)

	// Event store metrics
	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hookbridge_eventstore_operation_duration_seconds",
			Help:    "Duration of event store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_eventstore_errors_total",
			Help: "Total number of event store failures",
		},
		[]string{"operation"},
	)

	PersistDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookbridge_ingest_persist_dropped_total",
			Help: "Events acknowledged to the sender whose async persist then failed",
		},
	)

	// Upstream proxy metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_upstream_requests_total",
			Help: "Total number of requests forwarded to the upstream issue API",
		},
		[]string{"operation", "status"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hookbridge_upstream_request_duration_seconds",
			Help:    "Duration of upstream API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookbridge_rate_limit_hits_total",
			Help: "Total number of inbound requests rejected by the rate limiter",
		},
		[]string{"key"},
	)
)
