// Package metrics exposes Prometheus collectors for the unfurl service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	previewRequestsTotal        *prometheus.CounterVec
	previewOutcomesTotal        *prometheus.CounterVec
	previewFetchBytesTotal      *prometheus.CounterVec
	previewFetchDurationSeconds *prometheus.HistogramVec
	previewPermitsInUse         prometheus.Gauge
	previewGateWaiting          prometheus.Gauge
	previewAdmissionWaitSeconds prometheus.Histogram
	previewScrapeStopTotal      *prometheus.CounterVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		previewRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_requests_total",
				Help: "Total number of preview requests submitted, labeled by kind.",
			},
			[]string{"kind"},
		)

		previewOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_outcomes_total",
				Help: "Total number of preview outcomes delivered, labeled by result.",
			},
			[]string{"result"},
		)

		previewFetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_fetch_bytes_total",
				Help: "Total number of bytes read from the transport, labeled by branch.",
			},
			[]string{"branch"},
		)

		previewFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_fetch_duration_seconds",
				Help:    "Histogram of fetch wall time, labeled by branch and result.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"branch", "result"},
		)

		previewPermitsInUse = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "preview_permits_in_use",
				Help: "Number of throttle gate permits currently held.",
			},
		)

		previewGateWaiting = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "preview_gate_waiting",
				Help: "Number of requests queued or paced at the throttle gate.",
			},
		)

		previewAdmissionWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "preview_admission_wait_seconds",
				Help:    "Histogram of time spent waiting for gate admission.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
		)

		previewScrapeStopTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_scrape_stop_total",
				Help: "Total number of scrape streams stopped, labeled by reason.",
			},
			[]string{"reason"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest counts a submitted preview request.
func ObserveRequest(kind string) {
	previewRequestsTotal.WithLabelValues(kind).Inc()
}

// ObserveOutcome counts a delivered outcome by result label.
func ObserveOutcome(result string) {
	previewOutcomesTotal.WithLabelValues(result).Inc()
}

// ObserveFetch records the bytes and wall time of one completed fetch.
func ObserveFetch(branch, result string, bytesRead int64, duration time.Duration) {
	if bytesRead > 0 {
		previewFetchBytesTotal.WithLabelValues(branch).Add(float64(bytesRead))
	}
	previewFetchDurationSeconds.WithLabelValues(branch, result).Observe(duration.Seconds())
}

// ObserveAdmissionWait records how long a request waited at the gate.
func ObserveAdmissionWait(duration time.Duration) {
	previewAdmissionWaitSeconds.Observe(duration.Seconds())
}

// SetGateUsage updates the permit and waiter gauges.
func SetGateUsage(inUse, waiting int) {
	previewPermitsInUse.Set(float64(inUse))
	previewGateWaiting.Set(float64(waiting))
}

// ObserveScrapeStop counts why a scrape stream stopped.
func ObserveScrapeStop(reason string) {
	previewScrapeStopTotal.WithLabelValues(reason).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
