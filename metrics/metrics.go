// Package metrics exposes Prometheus collectors for the archiver.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	savesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webbank_saves_total",
			Help: "Total number of save requests, labeled by final stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	saveDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webbank_save_duration_seconds",
			Help:    "Histogram of end-to-end save latencies, labeled by outcome.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	captureDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webbank_capture_duration_seconds",
			Help:    "Histogram of mirror subprocess run times, labeled by status.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	reapedEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webbank_temp_reaped_entries_total",
			Help: "Total number of temp root entries processed by the reaper, labeled by result.",
		},
		[]string{"result"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webbank_http_requests_total",
			Help: "Total number of HTTP requests, labeled by method, route and code.",
		},
		[]string{"method", "route", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webbank_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSave records the outcome of one save request.
func ObserveSave(stage, outcome string, d time.Duration) {
	savesTotal.WithLabelValues(stage, outcome).Inc()
	saveDurationSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveCapture records one mirror invocation.
func ObserveCapture(status string, d time.Duration) {
	captureDurationSeconds.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveReap counts one temp root entry handled by the reaper.
func ObserveReap(result string) {
	reapedEntriesTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}
