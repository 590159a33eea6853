package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geomeasure_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geomeasure_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Measurement metrics
	computationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geomeasure_computations_total",
			Help: "Total number of computations by kind and outcome",
		},
		[]string{"kind", "status"}, // kind: homography, apply, elevation, rectify, session
	)

	computationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geomeasure_computation_duration_seconds",
			Help:    "Computation duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"kind"},
	)

	elevationAngle = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geomeasure_elevation_angle_degrees",
			Help:    "Computed sun elevation angles",
			Buckets: []float64{5, 10, 20, 30, 40, 50, 60, 70, 80, 90},
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geomeasure_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geomeasure_upload_size_bytes",
			Help:    "Size of uploaded images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geomeasure_websocket_active_connections",
			Help: "Number of active WebSocket sessions",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geomeasure_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

func recordComputation(kind string, err error, seconds float64) {
	status := "success"
	if err != nil {
		status = "error"
	}
	computationsTotal.WithLabelValues(kind, status).Inc()
	computationDuration.WithLabelValues(kind).Observe(seconds)
}
