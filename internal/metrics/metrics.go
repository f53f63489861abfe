// Package metrics exposes Prometheus collectors for the report service.
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
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	submissionsTotal           *prometheus.CounterVec
	cancelsTotal               *prometheus.CounterVec
	rateLimitedTotal           prometheus.Counter
	fallbacksTotal             *prometheus.CounterVec
	queueDepth                 prometheus.Gauge

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to call
// more than once.
func Init() {
	once.Do(func() {
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

		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_report_submissions_total",
				Help: "Report generation submissions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		cancelsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_report_cancels_total",
				Help: "Cancel requests, labeled by whether the job was running or queued.",
			},
			[]string{"state"},
		)

		rateLimitedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "signal_rate_limited_total",
				Help: "Submissions rejected by the per-client rate limiter.",
			},
		)

		fallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_canned_fallbacks_total",
				Help: "Responses served from canned data after a backend failure.",
			},
			[]string{"kind"},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "signal_queue_depth",
				Help: "Generations waiting for a worker.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSubmission counts a submission outcome such as "accepted" or "queue_full".
func ObserveSubmission(outcome string) {
	Init()
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCancel counts a cancel request; running distinguishes in-flight jobs.
func ObserveCancel(running bool) {
	Init()
	state := "queued"
	if running {
		state = "running"
	}
	cancelsTotal.WithLabelValues(state).Inc()
}

// ObserveRateLimited counts a rejected submission.
func ObserveRateLimited(string) {
	Init()
	rateLimitedTotal.Inc()
}

// ObserveFallback counts a canned response served in place of a failed backend.
func ObserveFallback(kind string) {
	Init()
	fallbacksTotal.WithLabelValues(kind).Inc()
}

// SetQueueDepth records the number of queued generations.
func SetQueueDepth(n int) {
	Init()
	queueDepth.Set(float64(n))
}
