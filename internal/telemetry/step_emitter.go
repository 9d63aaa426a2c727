package telemetry

import (
	"aurixa/services/orchestration-engine/internal/domain/pipeline"
)

// ServiceName identifies this service in emitted telemetry.
const ServiceName = "orchestration-engine"

// EventTypePipelineStep tags per-step latency events.
const EventTypePipelineStep = "pipeline_step"

// StepEmitter adapts the dispatcher to the pipeline's telemetry port.
type StepEmitter struct {
	dispatcher *Dispatcher
}

// NewStepEmitter wraps a dispatcher for step events.
func NewStepEmitter(dispatcher *Dispatcher) *StepEmitter {
	return &StepEmitter{dispatcher: dispatcher}
}

// EmitStep enqueues a step event, dropping it on backpressure.
func (e *StepEmitter) EmitStep(event pipeline.StepEvent) {
	e.dispatcher.Submit(Event{
		ServiceName: ServiceName,
		EventType:   EventTypePipelineStep,
		Data: map[string]any{
			"step_name":  event.StepName,
			"latency_ms": event.DurationMS,
			"session_id": event.SessionID,
		},
	})
}

var _ pipeline.TelemetryEmitter = (*StepEmitter)(nil)
