package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RecordsGenerated counts trade records produced by the factory and handed to the publisher
var RecordsGenerated = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "tradegen_records_generated_total",
		Help: "Total number of synthetic trade records generated",
	},
)

// PublishOutcomes counts resolved publish handles by final state
var PublishOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tradegen_publish_outcomes_total",
		Help: "Resolved publish handles by outcome (acknowledged, failed, timed_out)",
	},
	[]string{"outcome"},
)

// Batch timing
var (
	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradegen_batch_duration_seconds",
			Help:    "Time spent generating, sending and resolving one batch",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	PacingSleep = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradegen_pacing_sleep_seconds",
			Help:    "Residual sleep inserted after a batch to hold the target rate",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)
)

// Throughput gauges
var (
	TargetRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradegen_target_rate",
			Help: "Configured target publish rate in records per second",
		},
	)

	AchievedRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradegen_achieved_rate",
			Help: "Achieved publish rate in records per second, updated at checkpoints and shutdown",
		},
	)
)

// HTTP surface
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradegen_http_requests_total",
			Help: "Status endpoint requests by path, method and status",
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradegen_http_request_duration_seconds",
			Help:    "Status endpoint request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(RecordsGenerated, PublishOutcomes)
	prometheus.MustRegister(BatchDuration, PacingSleep)
	prometheus.MustRegister(TargetRate, AchievedRate)
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration)
}
