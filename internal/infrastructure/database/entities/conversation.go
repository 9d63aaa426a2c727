package entities

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"aurixa/services/orchestration-engine/internal/domain/conversation"
)

// Conversation represents the database schema for pipeline conversations
type Conversation struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	SessionID string  `gorm:"type:varchar(64);uniqueIndex;not null"`
	Metadata  JSONMap `gorm:"type:jsonb"`

	Steps []PipelineStep `gorm:"foreignKey:ConversationID"`
}

// TableName specifies the table name for Conversation.
func (Conversation) TableName() string {
	return "conversations"
}

// PipelineStep represents the database schema for one pipeline step row
type PipelineStep struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	ConversationID uint           `gorm:"index:idx_pipeline_step_conversation;not null"`
	Name           string         `gorm:"type:varchar(50);not null"`
	Status         string         `gorm:"type:varchar(20);not null;default:'pending'"`
	Input          datatypes.JSON `gorm:"type:jsonb"`
	Output         datatypes.JSON `gorm:"type:jsonb"`
	ErrorMessage   *string        `gorm:"type:text"`
	StartTime      time.Time      `gorm:"index;not null"`
	EndTime        *time.Time
}

// TableName specifies the table name for PipelineStep.
func (PipelineStep) TableName() string {
	return "pipeline_steps"
}

// JSONMap is a custom type for map[string]string stored as JSON
type JSONMap map[string]string

func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// EtoD converts database entity to domain model
func (c *Conversation) EtoD() *conversation.Conversation {
	metadata := make(map[string]string)
	if c.Metadata != nil {
		metadata = c.Metadata
	}

	steps := make([]conversation.PipelineStep, len(c.Steps))
	for i, step := range c.Steps {
		steps[i] = *step.EtoD()
	}

	return &conversation.Conversation{
		ID:        c.ID,
		SessionID: c.SessionID,
		Metadata:  metadata,
		Steps:     steps,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// NewSchemaConversation creates a database entity from domain model
func NewSchemaConversation(c *conversation.Conversation) *Conversation {
	return &Conversation{
		ID:        c.ID,
		SessionID: c.SessionID,
		Metadata:  c.Metadata,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// EtoD converts database entity to domain model
func (s *PipelineStep) EtoD() *conversation.PipelineStep {
	return &conversation.PipelineStep{
		ID:             s.ID,
		ConversationID: s.ConversationID,
		Name:           s.Name,
		Status:         conversation.StepStatus(s.Status),
		Input:          json.RawMessage(s.Input),
		Output:         json.RawMessage(s.Output),
		ErrorMessage:   s.ErrorMessage,
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
	}
}

// NewSchemaPipelineStep creates a database entity from domain model
func NewSchemaPipelineStep(s *conversation.PipelineStep) *PipelineStep {
	return &PipelineStep{
		ID:             s.ID,
		ConversationID: s.ConversationID,
		Name:           s.Name,
		Status:         s.Status.String(),
		Input:          datatypes.JSON(s.Input),
		Output:         datatypes.JSON(s.Output),
		ErrorMessage:   s.ErrorMessage,
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
	}
}
