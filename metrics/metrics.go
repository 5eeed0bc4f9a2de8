// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Play paths.
const (
	PathDirect  = "direct"
	PathRelease = "release"
)

var (
	// Play accounting
	PlaysRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunora_plays_recorded_total",
			Help: "Plays that incremented a track counter",
		},
		[]string{"path"},
	)

	PlaysDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunora_plays_deduplicated_total",
			Help: "Plays ignored because they repeated within the cooldown window",
		},
		[]string{"path"},
	)

	// Ranking
	RankingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tunora_ranking_duration_seconds",
			Help:    "Duration of ranking queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"view"},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunora_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tunora_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	// Notifications
	NotificationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunora_notifications_enqueued_total",
			Help: "Notification jobs handed to the queue",
		},
		[]string{"kind"},
	)

	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunora_notifications_delivered_total",
			Help: "Notification jobs processed by the worker",
		},
		[]string{"kind", "result"}, // "ok", "error"
	)

	// Blob storage
	BlobUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunora_blob_uploads_total",
			Help: "Blob uploads by folder and result",
		},
		[]string{"folder", "result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tunora_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordAPIRequest records one finished HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRanking records the duration of a ranking view.
func ObserveRanking(view string, start time.Time) {
	RankingDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}
