package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"aurixa/services/orchestration-engine/internal/domain/conversation"
	"aurixa/services/orchestration-engine/internal/infrastructure/metrics"
	"aurixa/services/orchestration-engine/internal/infrastructure/observability"
)

// StepRecorder persists per-step bookkeeping rows and emits step telemetry.
// Bookkeeping failures are logged but never abort the step itself.
type StepRecorder struct {
	repo      conversation.Repository
	telemetry TelemetryEmitter
	log       zerolog.Logger
}

// NewStepRecorder creates a step recorder.
func NewStepRecorder(repo conversation.Repository, telemetry TelemetryEmitter, log zerolog.Logger) *StepRecorder {
	return &StepRecorder{
		repo:      repo,
		telemetry: telemetry,
		log:       log,
	}
}

// RunStep executes op as a recorded step of conv. The step row is written
// as in_progress before op runs and finalized as success or error on every
// exit path, panics included, so an abandoned run leaves a diagnosable
// trail. A nil conv runs the step unrecorded: no rows are written and no
// telemetry is emitted, which is how the streaming path stays off the
// database.
func RunStep[T any](ctx context.Context, r *StepRecorder, conv *conversation.Conversation, name string, input any, op func(ctx context.Context) (T, error)) (result T, opErr error) {
	step := &conversation.PipelineStep{
		Name:      name,
		Status:    conversation.StepStatusInProgress,
		Input:     marshalPayload(input),
		StartTime: time.Now().UTC(),
	}
	if conv != nil {
		step.ConversationID = conv.ID
		if err := r.repo.CreateStep(ctx, step); err != nil {
			r.log.Warn().Err(err).Str("step", name).Str("session_id", conv.SessionID).Msg("failed to persist step start")
		}
	}

	stepCtx, span := observability.StartStepSpan(ctx, name)

	defer func() {
		panicked := recover()
		if panicked != nil {
			opErr = fmt.Errorf("step %s panicked: %v", name, panicked)
		}
		if opErr != nil {
			span.RecordError(opErr)
		}
		span.End()

		end := time.Now().UTC()
		step.EndTime = &end
		if opErr != nil {
			step.Status = conversation.StepStatusError
			msg := opErr.Error()
			step.ErrorMessage = &msg
		} else {
			step.Status = conversation.StepStatusSuccess
			step.Output = marshalPayload(result)
		}

		if conv == nil {
			metrics.ObserveStepDuration(name, step.Status.String(), float64(step.DurationMS())/1000)
		} else {
			if err := r.repo.UpdateStep(ctx, step); err != nil {
				r.log.Warn().Err(err).Str("step", name).Str("session_id", conv.SessionID).Msg("failed to persist step outcome")
			}
			conv.Steps = append(conv.Steps, *step)
			r.finish(name, conv.SessionID, step)
		}

		if panicked != nil {
			panic(panicked)
		}
	}()

	result, opErr = op(stepCtx)
	return result, opErr
}

// RecordCompletedStep writes a step that has no operation behind it, such
// as a cache hit, as an already-successful row.
func (r *StepRecorder) RecordCompletedStep(ctx context.Context, conv *conversation.Conversation, name string, input, output any) {
	now := time.Now().UTC()
	step := &conversation.PipelineStep{
		ConversationID: conv.ID,
		Name:           name,
		Status:         conversation.StepStatusSuccess,
		Input:          marshalPayload(input),
		Output:         marshalPayload(output),
		StartTime:      now,
		EndTime:        &now,
	}
	if err := r.repo.CreateStep(ctx, step); err != nil {
		r.log.Warn().Err(err).Str("step", name).Str("session_id", conv.SessionID).Msg("failed to persist step")
	}
	conv.Steps = append(conv.Steps, *step)

	r.finish(name, conv.SessionID, step)
}

func (r *StepRecorder) finish(name, sessionID string, step *conversation.PipelineStep) {
	metrics.ObserveStepDuration(name, step.Status.String(), float64(step.DurationMS())/1000)
	if r.telemetry != nil {
		r.telemetry.EmitStep(StepEvent{
			StepName:   name,
			DurationMS: step.DurationMS(),
			SessionID:  sessionID,
		})
	}
}

func marshalPayload(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
