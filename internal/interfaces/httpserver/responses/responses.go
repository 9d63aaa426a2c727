// Package responses defines the outbound HTTP payloads and error mapping.
package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"aurixa/services/orchestration-engine/internal/domain/conversation"
	"aurixa/services/orchestration-engine/internal/domain/pipeline"
	"aurixa/services/orchestration-engine/internal/utils/platformerrors"
)

// ErrorResponse represents an error response with platform error details
type ErrorResponse struct {
	Code      string `json:"code,omitempty"`
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HandleError maps domain and platform errors to HTTP responses.
func HandleError(reqCtx *gin.Context, err error, message string) {
	var platformErr *platformerrors.PlatformError
	if errors.As(err, &platformErr) {
		reqCtx.AbortWithStatusJSON(platformerrors.ErrorTypeToHTTPStatus(platformErr.Type), ErrorResponse{
			Code:      platformErr.UUID,
			Error:     message,
			Message:   platformErr.Message,
			RequestID: platformErr.RequestID,
		})
		return
	}

	var execErr *pipeline.ExecutionError
	if errors.As(err, &execErr) {
		status := http.StatusInternalServerError
		var collabErr *pipeline.CollaboratorError
		if pipeline.IsTransient(err) || errors.As(err, &collabErr) {
			status = http.StatusBadGateway
		}
		reqCtx.AbortWithStatusJSON(status, ErrorResponse{
			Error:   message,
			Message: execErr.Error(),
		})
		return
	}

	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error:   message,
		Message: message,
	})
}

// StepPayload is the client view of one pipeline step.
type StepPayload struct {
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	Input        any     `json:"input,omitempty"`
	Output       any     `json:"output,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
	StartTime    string  `json:"start_time"`
	EndTime      *string `json:"end_time,omitempty"`
	DurationMS   float64 `json:"duration_ms"`
}

// PipelineRunResponse is returned by the full-response pipeline endpoint.
type PipelineRunResponse struct {
	SessionID     string        `json:"session_id"`
	FinalResponse string        `json:"final_response"`
	Steps         []StepPayload `json:"steps"`
	CreatedAt     string        `json:"created_at"`
	UpdatedAt     string        `json:"updated_at"`
}

// ConversationPayload is the client view of a persisted conversation.
type ConversationPayload struct {
	SessionID string            `json:"session_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Steps     []StepPayload     `json:"steps"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

// ConversationListResponse wraps a patient's conversation history.
type ConversationListResponse struct {
	Data []ConversationPayload `json:"data"`
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// FromState maps a finished pipeline run to its response payload.
func FromState(state *pipeline.ConversationState) PipelineRunResponse {
	return PipelineRunResponse{
		SessionID:     state.SessionID,
		FinalResponse: state.FinalResponse,
		Steps:         mapSteps(state.Steps),
		CreatedAt:     state.CreatedAt.Format(timeLayout),
		UpdatedAt:     state.UpdatedAt.Format(timeLayout),
	}
}

// FromConversation maps a persisted conversation to its response payload.
func FromConversation(conv *conversation.Conversation) ConversationPayload {
	return ConversationPayload{
		SessionID: conv.SessionID,
		Metadata:  conv.Metadata,
		Steps:     mapSteps(conv.Steps),
		CreatedAt: conv.CreatedAt.Format(timeLayout),
		UpdatedAt: conv.UpdatedAt.Format(timeLayout),
	}
}

func mapSteps(steps []conversation.PipelineStep) []StepPayload {
	payloads := make([]StepPayload, len(steps))
	for i := range steps {
		step := &steps[i]
		payload := StepPayload{
			Name:         step.Name,
			Status:       step.Status.String(),
			ErrorMessage: step.ErrorMessage,
			StartTime:    step.StartTime.Format(timeLayout),
			DurationMS:   step.DurationMS(),
		}
		if len(step.Input) > 0 {
			payload.Input = step.Input
		}
		if len(step.Output) > 0 {
			payload.Output = step.Output
		}
		if step.EndTime != nil {
			end := step.EndTime.Format(timeLayout)
			payload.EndTime = &end
		}
		payloads[i] = payload
	}
	return payloads
}
