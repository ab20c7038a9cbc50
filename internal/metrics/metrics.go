// Package metrics defines Prometheus metrics for StoreGate.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// sizeBuckets are exponential buckets for request/response size histograms (bytes).
var sizeBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 67108864}

// HTTP metrics (RED: Rate, Errors, Duration).
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storegate_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency in seconds by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storegate_http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPRequestSize observes request body size in bytes.
	HTTPRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storegate_http_request_size_bytes",
			Help:    "Request body size in bytes",
			Buckets: sizeBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize observes response body size in bytes.
	HTTPResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storegate_http_response_size_bytes",
			Help:    "Response body size in bytes",
			Buckets: sizeBuckets,
		},
		[]string{"method", "path"},
	)
)

// Upload metrics.
var (
	// UploadPartsTotal counts multipart upload parts sent to the backend.
	UploadPartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storegate_upload_parts_total",
			Help: "Multipart upload parts sent to the storage backend",
		},
	)

	// UploadAbortsTotal counts multipart upload sessions aborted after a
	// failure, by abort outcome.
	UploadAbortsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storegate_upload_aborts_total",
			Help: "Multipart upload sessions aborted after a failure",
		},
		[]string{"outcome"},
	)

	// UploadedBytesTotal counts bytes durably uploaded through completed sessions.
	UploadedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storegate_uploaded_bytes_total",
			Help: "Bytes uploaded through completed multipart sessions",
		},
	)

	// UnauthorizedTotal counts requests rejected by the authorization predicate.
	UnauthorizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storegate_requests_unauthorized_total",
			Help: "Requests rejected by the authorization predicate",
		},
		[]string{"method"},
	)
)

// Register registers all Prometheus collectors with the default registry.
// This must be called explicitly (typically from main) so that metrics
// registration can be made conditional on configuration. It is safe to call
// multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			HTTPRequestSize,
			HTTPResponseSize,
			UploadPartsTotal,
			UploadAbortsTotal,
			UploadedBytesTotal,
			UnauthorizedTotal,
		)
		// Initialize the abort outcomes so both series appear in /metrics
		// before the first failed upload.
		UploadAbortsTotal.WithLabelValues("ok")
		UploadAbortsTotal.WithLabelValues("failed")
	})
}

// NormalizePath maps request paths to low-cardinality templates suitable for
// Prometheus labels. Every object key collapses to /{filename}.
func NormalizePath(path string) string {
	switch path {
	case "/health", "/metrics", "/openapi.json":
		return path
	case "/docs", "/docs/":
		return "/docs"
	case "/", "":
		return "/"
	}
	if strings.HasPrefix(path, "/docs") {
		return "/docs"
	}
	return "/{filename}"
}
