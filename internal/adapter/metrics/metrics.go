// Package metrics holds the Prometheus collectors shared by the API, the
// collectors and the outbound HTTP clients.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricsOnce ensures metrics are registered only once
	metricsOnce sync.Once

	// analysesTotal counts completed assessments by kind and tier
	analysesTotal *prometheus.CounterVec

	// analysisConfidence tracks the distribution of fused confidences
	analysisConfidence *prometheus.HistogramVec

	// collectorAbsentTotal counts evidence sources that produced no value
	collectorAbsentTotal *prometheus.CounterVec

	// externalAPIErrorsTotal tracks outbound API errors by client and type
	externalAPIErrorsTotal *prometheus.CounterVec

	// classifierDuration tracks latency of classifier calls
	classifierDuration prometheus.Histogram

	// httpRequestsTotal counts REST requests by method, route and status
	httpRequestsTotal *prometheus.CounterVec

	// httpRequestDuration tracks REST latency by route
	httpRequestDuration *prometheus.HistogramVec
)

// InitMetrics registers all collectors. Safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		analysesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socia_analyses_total",
				Help: "Total number of completed analyses by kind and threat level",
			},
			[]string{"kind", "threat_level"},
		)

		analysisConfidence = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "socia_analysis_confidence",
				Help:    "Distribution of fused confidence scores (0-1)",
				Buckets: []float64{0.1, 0.25, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
			[]string{"kind"},
		)

		collectorAbsentTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socia_collector_absent_total",
				Help: "Total number of evidence collections that degraded to absence",
			},
			[]string{"source"},
		)

		externalAPIErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socia_external_api_errors_total",
				Help: "Total number of external API errors by client and error type",
			},
			[]string{"client", "error_type"},
		)

		classifierDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "socia_classifier_duration_seconds",
				Help:    "Duration of text classification calls in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socia_http_requests_total",
				Help: "Total number of REST requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "socia_http_request_duration_seconds",
				Help:    "Duration of REST requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		)
	})
}

// RecordAnalysis records a completed assessment.
func RecordAnalysis(kind, tier string, confidence float64) {
	if analysesTotal != nil {
		analysesTotal.WithLabelValues(kind, tier).Inc()
	}
	if analysisConfidence != nil {
		analysisConfidence.WithLabelValues(kind).Observe(confidence)
	}
}

// RecordAbsent records a collector that produced no evidence.
// source: "port_scan", "reputation", "classifier", "fingerprint", ...
func RecordAbsent(source string) {
	if collectorAbsentTotal != nil {
		collectorAbsentTotal.WithLabelValues(source).Inc()
	}
}

// RecordAPIError records an outbound API error.
// errorType: "timeout", "auth", "rate_limit", "server_error", "connection", "parse", "circuit_open", "http_error"
func RecordAPIError(client, errorType string) {
	if externalAPIErrorsTotal != nil {
		externalAPIErrorsTotal.WithLabelValues(client, errorType).Inc()
	}
}

// RecordClassifierDuration records the duration of a classifier call
func RecordClassifierDuration(duration time.Duration) {
	if classifierDuration != nil {
		classifierDuration.Observe(duration.Seconds())
	}
}

// RecordHTTPRequest records a served REST request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if httpRequestsTotal != nil {
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	}
	if httpRequestDuration != nil {
		httpRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
	}
}

// Timer is a helper for timing classifier calls
type Timer struct {
	start time.Time
}

// StartTimer creates a new timer
func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveClassifier records the elapsed time since the timer started
func (t *Timer) ObserveClassifier() {
	if t != nil {
		RecordClassifierDuration(time.Since(t.start))
	}
}
