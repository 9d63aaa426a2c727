// Package conversation implements the GORM-backed conversation repository.
package conversation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	domain "aurixa/services/orchestration-engine/internal/domain/conversation"
	"aurixa/services/orchestration-engine/internal/infrastructure/database/entities"
	"aurixa/services/orchestration-engine/internal/utils/platformerrors"
)

// Repository persists conversations and their step rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a conversation repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the conversation record and backfills ID and timestamps.
func (r *Repository) Create(ctx context.Context, conv *domain.Conversation) error {
	entity := entities.NewSchemaConversation(conv)

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create conversation",
			err,
			"8a1c2b3d-4e5f-6a7b-8c9d-0e1f2a3b4c5d",
		)
	}

	conv.ID = entity.ID
	conv.CreatedAt = entity.CreatedAt
	conv.UpdatedAt = entity.UpdatedAt
	return nil
}

// FindBySessionID fetches a conversation with its steps ordered by start time.
func (r *Repository) FindBySessionID(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	var entity entities.Conversation
	if err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("start_time ASC, id ASC")
		}).
		Where("session_id = ?", sessionID).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("conversation not found: %s", sessionID),
				nil,
				"9b2d3c4e-5f6a-7b8c-9d0e-1f2a3b4c5d6e",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch conversation",
			err,
			"0c3e4d5f-6a7b-8c9d-0e1f-2a3b4c5d6e7f",
		)
	}

	return entity.EtoD(), nil
}

// ListByPatient returns the most recent conversations whose metadata
// references the patient, newest first.
func (r *Repository) ListByPatient(ctx context.Context, patientID string, limit int) ([]*domain.Conversation, error) {
	if limit <= 0 {
		limit = 20
	}

	var list []entities.Conversation
	if err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("start_time ASC, id ASC")
		}).
		Where("metadata->>'patient_id' = ?", patientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list conversations",
			err,
			"1d4f5e6a-7b8c-9d0e-1f2a-3b4c5d6e7f8a",
		)
	}

	result := make([]*domain.Conversation, len(list))
	for i := range list {
		result[i] = list[i].EtoD()
	}
	return result, nil
}

// CreateStep appends a step row to a conversation.
func (r *Repository) CreateStep(ctx context.Context, step *domain.PipelineStep) error {
	entity := entities.NewSchemaPipelineStep(step)

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create pipeline step",
			err,
			"2e5a6f7b-8c9d-0e1f-2a3b-4c5d6e7f8a9b",
		)
	}

	step.ID = entity.ID
	return nil
}

// UpdateStep persists the current state of an existing step row.
func (r *Repository) UpdateStep(ctx context.Context, step *domain.PipelineStep) error {
	if step.ID == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeValidation,
			"cannot update unsaved pipeline step",
			nil,
			"3f6b7a8c-9d0e-1f2a-3b4c-5d6e7f8a9b0c",
		)
	}

	entity := entities.NewSchemaPipelineStep(step)
	if err := r.db.WithContext(ctx).Save(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update pipeline step",
			err,
			"4a7c8b9d-0e1f-2a3b-4c5d-6e7f8a9b0c1d",
		)
	}
	return nil
}

// ListSteps returns a conversation's steps ordered by start time.
func (r *Repository) ListSteps(ctx context.Context, conversationID uint) ([]domain.PipelineStep, error) {
	var list []entities.PipelineStep
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("start_time ASC, id ASC").
		Find(&list).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list pipeline steps",
			err,
			"5b8d9c0e-1f2a-3b4c-5d6e-7f8a9b0c1d2e",
		)
	}

	steps := make([]domain.PipelineStep, len(list))
	for i := range list {
		steps[i] = *list[i].EtoD()
	}
	return steps, nil
}
