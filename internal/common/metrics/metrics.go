// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InboundMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbound_messages_total",
			Help: "Total number of inbound webhook messages accepted",
		},
		[]string{"kind"},
	)

	InboundMessagesDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inbound_messages_duplicate_total",
			Help: "Total number of inbound messages dropped as provider redeliveries",
		},
	)

	ProcessingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processing_failures_total",
			Help: "Total number of inbound messages whose processing failed",
		},
		[]string{"stage", "error_code"},
	)

	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "processing_duration_seconds",
			Help: "Duration of inbound message processing in seconds",
		},
		[]string{"kind"},
	)

	ScreeningsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "screenings_completed_total",
			Help: "Total number of screenings finalized with a score",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Number of inbound messages waiting in the worker queue",
		},
	)

	QueueRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_queue_rejections_total",
			Help: "Total number of tasks dropped because the worker queue was full",
		},
	)
)
