package conversation

import "context"

// Repository persists conversations and their steps.
type Repository interface {
	// Create inserts the conversation record and backfills ID/timestamps.
	Create(ctx context.Context, conv *Conversation) error

	// FindBySessionID fetches a conversation with its steps ordered by start time.
	FindBySessionID(ctx context.Context, sessionID string) (*Conversation, error)

	// ListByPatient returns recent conversations whose metadata references the patient.
	ListByPatient(ctx context.Context, patientID string, limit int) ([]*Conversation, error)

	// CreateStep appends a step row to a conversation.
	CreateStep(ctx context.Context, step *PipelineStep) error

	// UpdateStep persists the current state of an existing step row.
	UpdateStep(ctx context.Context, step *PipelineStep) error

	// ListSteps returns a conversation's steps ordered by start time.
	ListSteps(ctx context.Context, conversationID uint) ([]PipelineStep, error)
}
