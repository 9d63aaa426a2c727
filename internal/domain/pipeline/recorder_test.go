package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"aurixa/services/orchestration-engine/internal/domain/conversation"
)

func TestRunStepFinalizesOnPanic(t *testing.T) {
	repo := &mockRepo{}
	rec := NewStepRecorder(repo, &mockTelemetry{}, zerolog.Nop())
	conv := conversation.NewConversation("sess-panic", nil)
	conv.ID = 1

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		_, _ = RunStep(context.Background(), rec, conv, StepClassifyIntent, nil,
			func(ctx context.Context) (string, error) {
				panic("router client blew up")
			})
	}()
	if recovered == nil {
		t.Fatal("panic should propagate out of RunStep")
	}

	// The row still reaches a terminal state with an end time.
	if len(repo.steps) != 1 {
		t.Fatalf("persisted steps = %d, want 1", len(repo.steps))
	}
	step := repo.steps[0]
	if step.Status != conversation.StepStatusError {
		t.Errorf("status = %q, want %q", step.Status, conversation.StepStatusError)
	}
	if step.EndTime == nil {
		t.Error("end_time not set")
	}
	if step.ErrorMessage == nil || !strings.Contains(*step.ErrorMessage, "panicked") {
		t.Errorf("error message = %v, want the panic recorded", step.ErrorMessage)
	}
	if len(conv.Steps) != 1 {
		t.Errorf("conversation steps = %d, want 1", len(conv.Steps))
	}
}

func TestRunStepFinalizesOnError(t *testing.T) {
	repo := &mockRepo{}
	rec := NewStepRecorder(repo, &mockTelemetry{}, zerolog.Nop())
	conv := conversation.NewConversation("sess-err", nil)
	conv.ID = 1

	_, err := RunStep(context.Background(), rec, conv, StepValidateOutput, nil,
		func(ctx context.Context) (string, error) {
			return "", NewCollaboratorError("safety-guardrails", "validate", 500, "down")
		})
	if err == nil {
		t.Fatal("RunStep() expected error")
	}

	step := repo.steps[0]
	if step.Status != conversation.StepStatusError {
		t.Errorf("status = %q, want %q", step.Status, conversation.StepStatusError)
	}
	if step.EndTime == nil || step.EndTime.Before(step.StartTime) {
		t.Errorf("end_time = %v, want at or after start %v", step.EndTime, step.StartTime)
	}
}
