package pipeline

import (
	"context"

	"github.com/rs/zerolog"

	"aurixa/services/orchestration-engine/internal/infrastructure/metrics"
)

// StreamEvent is one line of a streaming pipeline run.
type StreamEvent struct {
	Event         string `json:"event"`
	Message       string `json:"message,omitempty"`
	Delta         string `json:"delta,omitempty"`
	FinalResponse string `json:"final_response,omitempty"`
}

// Stream event types.
const (
	EventStatus    = "status"
	EventTextDelta = "text_delta"
	EventDone      = "done"
	EventError     = "error"
)

// EventEmitter delivers stream events to the client. A returned error means
// the client is gone; the run keeps going but stops emitting.
type EventEmitter interface {
	Emit(event StreamEvent) error
}

// eventSink wraps an emitter so pipeline code can emit without checking for
// a detached client at every call site. A nil sink discards everything.
type eventSink struct {
	emitter EventEmitter
	dead    bool
	log     zerolog.Logger
}

func (s *eventSink) emit(event StreamEvent) {
	if s == nil || s.dead || s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(event); err != nil {
		s.dead = true
		s.log.Warn().Err(err).Msg("stream client detached, continuing run without emission")
	}
}

func (s *eventSink) status(message string) {
	s.emit(StreamEvent{Event: EventStatus, Message: message})
}

func (s *eventSink) delta(text string) {
	if text == "" {
		return
	}
	s.emit(StreamEvent{Event: EventTextDelta, Delta: text})
}

// RunStream executes the pipeline in streaming mode: the same stages as Run,
// but nothing is persisted and the cache is bypassed. Status and text_delta
// events are emitted as stages progress; the terminal done event carries
// the validated final response, which is authoritative over the streamed
// deltas when validation rewrote the text.
func (c *Coordinator) RunStream(ctx context.Context, req PipelineRequest, emitter EventEmitter) error {
	sink := &eventSink{emitter: emitter, log: c.log}

	final, branch, err := c.execute(ctx, nil, req, sink)
	if err != nil {
		sink.emit(StreamEvent{Event: EventError, Message: err.Error()})
		metrics.RecordPipelineRun(branch, "error")
		return err
	}

	sink.emit(StreamEvent{Event: EventDone, FinalResponse: final})
	metrics.RecordPipelineRun(branch, "success")
	return nil
}
