// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "aurixa"
	subsystem = "orchestration_engine"
)

var (
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by branch taken and outcome.",
		},
		[]string{"branch", "outcome"},
	)

	stepDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "step_duration_seconds",
			Help:      "Wall time of individual pipeline steps.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"step", "status"},
	)

	cacheEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "response_cache_events_total",
			Help:      "Response cache lookups by result.",
		},
		[]string{"result"},
	)

	collaboratorRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "collaborator_retries_total",
			Help:      "Retried collaborator calls by service.",
		},
		[]string{"service"},
	)

	telemetryQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "telemetry_queue_depth",
			Help:      "Events currently buffered in the telemetry dispatcher.",
		},
	)

	telemetryDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "telemetry_dropped_total",
			Help:      "Telemetry events dropped because the queue was full.",
		},
	)
)

// RecordPipelineRun counts one finished pipeline run.
func RecordPipelineRun(branch, outcome string) {
	pipelineRunsTotal.WithLabelValues(branch, outcome).Inc()
}

// ObserveStepDuration records the wall time of one pipeline step.
func ObserveStepDuration(step, status string, seconds float64) {
	stepDurationSeconds.WithLabelValues(step, status).Observe(seconds)
}

// RecordCacheHit counts a response cache hit.
func RecordCacheHit() {
	cacheEventsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss counts a response cache miss.
func RecordCacheMiss() {
	cacheEventsTotal.WithLabelValues("miss").Inc()
}

// RecordCollaboratorRetry counts a retried call to a collaborator service.
func RecordCollaboratorRetry(service string) {
	collaboratorRetriesTotal.WithLabelValues(service).Inc()
}

// SetTelemetryQueueDepth reports the dispatcher's current buffer size.
func SetTelemetryQueueDepth(depth int) {
	telemetryQueueDepth.Set(float64(depth))
}

// RecordTelemetryDropped counts a telemetry event lost to backpressure.
func RecordTelemetryDropped() {
	telemetryDroppedTotal.Inc()
}
