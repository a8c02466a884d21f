// Package metrics provides Prometheus metrics for the seeker library and
// the evidence API server.
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
	// Seeker metrics
	seekerSearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aleapp_seeker_searches_total",
			Help: "Total number of pattern searches, by backend",
		},
		[]string{"backend"},
	)

	seekerFilesMaterialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aleapp_seeker_files_materialized_total",
			Help: "Files copied, extracted or downloaded into the destination directory",
		},
		[]string{"backend"},
	)

	seekerItemErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aleapp_seeker_item_errors_total",
			Help: "Per-item extraction or download failures that were skipped",
		},
		[]string{"backend"},
	)

	// Web backend metrics
	webRequestRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aleapp_web_request_retries_total",
			Help: "HTTP requests retried after a retryable status code",
		},
	)

	// Evidence server metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aleapp_evidence_http_requests_total",
			Help: "Total number of HTTP requests served by the evidence API",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aleapp_evidence_http_request_duration_seconds",
			Help:    "Evidence API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	evidenceIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aleapp_evidence_index_size",
			Help: "Number of files in the evidence index",
		},
	)
)

// RecordSearch increments the search counter for a backend.
func RecordSearch(backend string) {
	seekerSearchesTotal.WithLabelValues(backend).Inc()
}

// RecordMaterialized increments the materialized-files counter for a backend.
func RecordMaterialized(backend string) {
	seekerFilesMaterialized.WithLabelValues(backend).Inc()
}

// RecordItemError increments the skipped-item counter for a backend.
func RecordItemError(backend string) {
	seekerItemErrors.WithLabelValues(backend).Inc()
}

// RecordWebRetry increments the web request retry counter.
func RecordWebRetry() {
	webRequestRetries.Inc()
}

// RecordHTTPRequest records an evidence API request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetEvidenceIndexSize updates the evidence index size gauge.
func SetEvidenceIndexSize(n int) {
	evidenceIndexSize.Set(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
