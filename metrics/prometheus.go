package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by endpoint and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration tracks request latency per endpoint.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ReadingsIngested counts accepted sensor readings.
	ReadingsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensor_readings_ingested_total",
			Help: "Total number of sensor readings accepted into the buffer",
		},
	)

	// ReadingsRejected counts malformed ingestion payloads by missing field.
	ReadingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensor_readings_rejected_total",
			Help: "Total number of sensor readings rejected at validation",
		},
		[]string{"field"},
	)

	// BufferSize reports the current rolling-buffer occupancy.
	BufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensor_buffer_size",
			Help: "Number of readings currently held in the rolling buffer",
		},
	)

	// UpstreamFallbacks counts fail-open substitutions by lookup.
	UpstreamFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_fallbacks_total",
			Help: "Total number of environmental lookups resolved with fallback constants",
		},
		[]string{"lookup"},
	)

	// AssessmentsTotal counts produced risk assessments by outcome.
	AssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_assessments_total",
			Help: "Total number of risk assessments produced",
		},
		[]string{"risk_level", "activity"},
	)

	// ClassifierDegraded is 1 while the degraded fallback classifier serves.
	ClassifierDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classifier_degraded",
			Help: "Whether the activity classifier is running in degraded mode",
		},
	)

	// CacheOperations counts snapshot cache lookups and writes by outcome.
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_cache_operations_total",
			Help: "Total number of snapshot cache operations",
		},
		[]string{"operation", "status"},
	)
)
