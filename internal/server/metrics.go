package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "barcodekit"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, path and status code.",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	// status: success, invalid, error
	generateRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "generate",
		Name:      "requests_total",
		Help:      "Barcode render requests by format and outcome.",
	}, []string{"format", "status"})

	// status: found, miss, error
	decodeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "decode",
		Name:      "requests_total",
		Help:      "Uploaded image decode requests by outcome.",
	}, []string{"status"})

	decodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "decode",
		Name:      "request_duration_seconds",
		Help:      "Decode time for one uploaded image.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	uploadSizeBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "decode",
		Name:      "upload_size_bytes",
		Help:      "Size of uploaded images.",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
	})

	// type: minute, hour, requests, data
	rateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "ratelimit",
		Name:      "hits_total",
		Help:      "Requests rejected by the rate limiter or daily quota.",
	}, []string{"type"})

	websocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "scan",
		Name:      "websocket_connections",
		Help:      "Open live-scan WebSocket connections.",
	})

	// direction: received, sent; kind: frame, control or the sent message type
	websocketMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "scan",
		Name:      "websocket_messages_total",
		Help:      "Live-scan WebSocket messages.",
	}, []string{"direction", "kind"})
)
