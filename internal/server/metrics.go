package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lasso_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lasso_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Segmentation proxy metrics
	segmentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lasso_segment_requests_total",
			Help: "Total number of segmentation backend requests",
		},
		[]string{"prompt", "status"}, // prompt: text, points, box, template
	)

	segmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lasso_segment_duration_seconds",
			Help:    "Segmentation backend round-trip duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50},
		},
		[]string{"prompt"},
	)

	// Store metrics
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lasso_store_operations_total",
			Help: "Total number of annotation store operations",
		},
		[]string{"op"}, // add, delete, update, undo, redo, paste, edit_commit
	)

	annotationsLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lasso_annotations_live",
			Help: "Number of live annotations across all images",
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lasso_websocket_connections",
			Help: "Number of active WebSocket event subscribers",
		},
	)
)
