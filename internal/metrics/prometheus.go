// Package metrics defines Prometheus collectors for the publish path and
// the issue delivery worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish path metrics
var (
	PublishRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_publish_requests_total",
			Help: "Total number of publish requests by outcome",
		},
		[]string{"outcome"}, // published, replayed, in_flight, invalid, error
	)

	DeliveriesEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsletter_deliveries_enqueued_total",
			Help: "Total number of delivery queue rows created at publish time",
		},
	)
)

// Delivery worker metrics
var (
	DeliveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_delivery_attempts_total",
			Help: "Total number of delivery attempts by outcome",
		},
		[]string{"outcome"}, // sent, send_failed, invalid_recipient
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsletter_delivery_duration_seconds",
			Help:    "Duration of mail send attempts",
			Buckets: prometheus.DefBuckets,
		},
	)

	DeliveryQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newsletter_delivery_queue_depth",
			Help: "Number of pending delivery queue rows",
		},
	)
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsletter_api_request_duration_seconds",
			Help:    "Duration of API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
