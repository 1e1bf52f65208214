// Package metrics provides Prometheus metrics for the gridfax service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus metric the service exposes.
type Manager struct {
	namespace string
	registry  prometheus.Registerer

	// Compilation pipeline
	runsFinished   *prometheus.CounterVec
	runActive      prometheus.Gauge
	runDuration    prometheus.Histogram
	gamesProcessed prometheus.Counter
	gamesFailed    prometheus.Counter
	rowsTouched    *prometheus.CounterVec

	// Source feed
	feedRequests prometheus.Counter
	feedFailures prometheus.Counter

	// Leaderboard cache
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager

// Custom registry keeps the default Go collectors out of /metrics.
var customRegistry = prometheus.NewRegistry()

func init() {
	globalManager = NewManager(customRegistry)
}

// NewManager creates a manager registered on reg.
func NewManager(reg prometheus.Registerer) *Manager {
	m := &Manager{
		namespace: "gridfax",
		registry:  reg,
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.runsFinished = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "runs_total",
			Help:      "Total number of finished compilation runs by terminal status",
		},
		[]string{"status"},
	)

	m.runActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "run_active",
		Help:      "Whether a compilation run is currently executing (0 or 1)",
	})

	m.gamesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "games_processed_total",
		Help:      "Total number of games merged into the aggregate tables",
	})

	m.gamesFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "games_failed_total",
		Help:      "Total number of games skipped after fetch failures",
	})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of finished compilation runs",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
	})

	m.rowsTouched = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "rows_touched_total",
			Help:      "Total number of aggregate rows written per category",
		},
		[]string{"category"},
	)

	m.feedRequests = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "feed_requests_total",
		Help:      "Total number of HTTP requests issued to the source feed",
	})

	m.feedFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "feed_failures_total",
		Help:      "Total number of source feed requests that failed",
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "leaderboard_cache_hits_total",
		Help:      "Total number of leaderboard reads served from Redis",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "leaderboard_cache_misses_total",
		Help:      "Total number of leaderboard reads that fell through to Postgres",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds by route and method",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
}

// RecordRunFinished increments the finished-run counter for a terminal
// status.
func RecordRunFinished(status string) {
	globalManager.runsFinished.WithLabelValues(status).Inc()
}

// SetRunActive flips the active-run gauge.
func SetRunActive(active bool) {
	if active {
		globalManager.runActive.Set(1)
		return
	}
	globalManager.runActive.Set(0)
}

// RecordGameProcessed increments the merged-game counter.
func RecordGameProcessed() {
	globalManager.gamesProcessed.Inc()
}

// RecordGameFailed increments the skipped-game counter.
func RecordGameFailed() {
	globalManager.gamesFailed.Inc()
}

// RecordRunDuration records the wall-clock duration of a finished run.
func RecordRunDuration(seconds float64) {
	globalManager.runDuration.Observe(seconds)
}

// RecordRowsTouched adds written rows for one category.
func RecordRowsTouched(category string, n int) {
	globalManager.rowsTouched.WithLabelValues(category).Add(float64(n))
}

// RecordFeedRequest increments the source feed request counter.
func RecordFeedRequest() {
	globalManager.feedRequests.Inc()
}

// RecordFeedFailure increments the source feed failure counter.
func RecordFeedFailure() {
	globalManager.feedFailures.Inc()
}

// RecordCacheHit increments the leaderboard cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the leaderboard cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(route, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(route, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(route, method string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(route, method).Observe(durationMs)
}

// GetRegistry returns the custom Prometheus registry backing /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
