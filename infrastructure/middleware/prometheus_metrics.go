// Package middleware provides cross-cutting concerns for the verification
// service. It bridges the ports interfaces to concrete observability backends
// so business logic stays free of instrumentation detail.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/veridoc/veridoc/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It provides real-time monitoring of LLM usage, pipeline stage latency,
// and verdict outcomes for the verification service.
type PrometheusMetrics struct {
	llmLatency   *prometheus.HistogramVec
	llmRequests  *prometheus.CounterVec
	llmTokens    *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec
	verdicts     *prometheus.CounterVec
	operations   *prometheus.CounterVec
	systemGauges *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and registers
// all required metrics in the global Prometheus registry. Registration is
// global, so this must be called at most once per process.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		// LLM-specific metrics fed by the client middleware chain.
		llmLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "veridoc",
				Name:      "llm_latency_seconds",
				Help:      "Latency of LLM requests by provider, model, and outcome.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "model", "status"},
		),
		llmRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "veridoc",
				Name:      "llm_requests_total",
				Help:      "Total number of LLM requests by provider, model, and outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "veridoc",
				Name:      "llm_tokens_total",
				Help:      "Total number of tokens consumed across all LLM interactions.",
			},
			[]string{"provider", "model", "token_type"},
		),

		// Pipeline metrics for comprehensive observability of the
		// verification flow.
		stageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "veridoc",
				Name:      "stage_duration_seconds",
				Help:      "Execution time of verification pipeline stages.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "doc_type"},
		),
		verdicts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "veridoc",
				Name:      "verdicts_total",
				Help:      "Verification verdicts by outcome.",
			},
			[]string{"verdict"},
		),
		operations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "veridoc",
				Name:      "operations_total",
				Help:      "Total number of service operations by outcome.",
			},
			[]string{"operation", "status"},
		),
		systemGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "veridoc",
				Name:      "system_state",
				Help:      "Current system state values for the verification service.",
			},
			[]string{"metric"},
		),
	}
}

// label returns the named label value, or "unknown" when it is absent.
func label(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return "unknown"
}

// RecordLatency implements the MetricsCollector interface by recording
// pipeline stage latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.stageLatency.WithLabelValues(operation, label(labels, "doc_type")).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters. Known metric names route to dedicated counter
// families; everything else lands in the generic operations counter.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "llm_requests_total":
		pm.llmRequests.WithLabelValues(
			label(labels, "provider"),
			label(labels, "model"),
			label(labels, "status"),
		).Add(value)
	case "llm_tokens_total":
		pm.llmTokens.WithLabelValues(
			label(labels, "provider"),
			label(labels, "model"),
			label(labels, "token_type"),
		).Add(value)
	case "verification_verdicts_total":
		pm.verdicts.WithLabelValues(label(labels, "verdict")).Add(value)
	default:
		status, ok := labels["status"]
		if !ok || status == "" {
			status = "success"
		}
		pm.operations.WithLabelValues(metric, status).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, _ map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram. The LLM latency metric keeps its
// provider labels; everything else is treated as a pipeline stage.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	if metric == "llm_latency_seconds" {
		pm.llmLatency.WithLabelValues(
			label(labels, "provider"),
			label(labels, "model"),
			label(labels, "status"),
		).Observe(value)
		return
	}
	pm.stageLatency.WithLabelValues(metric, label(labels, "doc_type")).Observe(value)
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
