package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decodeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barcodekit_capture_decode_attempts_total",
			Help: "Decode attempts on preview frames by outcome",
		},
		[]string{"outcome"},
	)

	decodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "barcodekit_capture_decode_duration_seconds",
			Help:    "Time spent decoding one preview frame",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "barcodekit_capture_sessions_active",
			Help: "Capture sessions currently running",
		},
	)
)
