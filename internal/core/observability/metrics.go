// Package observability holds the Prometheus collectors shared by the client,
// the cache tiers and the proxy.
package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammed-shakir/geoclient/pkg/geocodec"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of geo service calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"endpoint"},
	)

	decodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decode_errors_total",
			Help: "Response bodies that failed to decode, by endpoint and error kind.",
		},
		[]string{"endpoint", "kind"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache results by outcome.",
		},
		[]string{"outcome"},
	)

	cacheOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Duration of cache backend operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)

	recordEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_events_total",
			Help: "Record change events by operation and result.",
		},
		[]string{"op", "result"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(endpoint string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(endpoint).Observe(durationSeconds)
}

// IncDecodeError counts a decode failure under the kind derived from err.
func IncDecodeError(endpoint string, err error) {
	decodeErrorsTotal.WithLabelValues(endpoint, DecodeErrorKind(err)).Inc()
}

// DecodeErrorKind maps a decode error to a low-cardinality label.
func DecodeErrorKind(err error) string {
	switch {
	case errors.Is(err, geocodec.ErrMalformedGeometry):
		return "malformed_geometry"
	case errors.Is(err, geocodec.ErrUnsupportedGeometry):
		return "unsupported_geometry"
	case errors.Is(err, geocodec.ErrUnsupportedRecord):
		return "unsupported_record"
	case errors.Is(err, geocodec.ErrMissingRecordType):
		return "missing_record_type"
	default:
		return "syntax"
	}
}

func IncCacheHit() {
	cacheResults.WithLabelValues("hit").Inc()
}

func IncCacheMiss() {
	cacheResults.WithLabelValues("miss").Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOpDurationSeconds.WithLabelValues(op, result(err)).Observe(durationSeconds)
}

func IncRecordEvent(op string, err error) {
	recordEventsTotal.WithLabelValues(op, result(err)).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
