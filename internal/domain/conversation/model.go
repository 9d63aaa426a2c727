// Package conversation holds the persisted pipeline run model.
package conversation

import (
	"encoding/json"
	"time"
)

// StepStatus tracks the lifecycle of a single pipeline step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusSuccess    StepStatus = "success"
	StepStatusError      StepStatus = "error"
)

// IsTerminal returns true once the step can no longer change state.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusSuccess || s == StepStatusError
}

// String returns the string representation of the status.
func (s StepStatus) String() string {
	return string(s)
}

// Conversation is one row per pipeline run. It exclusively owns its ordered
// steps; steps never move between conversations.
type Conversation struct {
	ID        uint              `json:"-"`
	SessionID string            `json:"session_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Steps     []PipelineStep    `json:"steps,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// PipelineStep is one named unit of work inside a conversation.
type PipelineStep struct {
	ID             uint            `json:"-"`
	ConversationID uint            `json:"-"`
	Name           string          `json:"name"`
	Status         StepStatus      `json:"status"`
	Input          json.RawMessage `json:"input,omitempty"`
	Output         json.RawMessage `json:"output,omitempty"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
}

// DurationMS returns the wall time of a finished step in milliseconds.
func (s *PipelineStep) DurationMS() float64 {
	if s.EndTime == nil {
		return 0
	}
	return float64(s.EndTime.Sub(s.StartTime)) / float64(time.Millisecond)
}

// NewConversation builds an unpersisted conversation for a session.
func NewConversation(sessionID string, metadata map[string]string) *Conversation {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &Conversation{
		SessionID: sessionID,
		Metadata:  metadata,
	}
}
