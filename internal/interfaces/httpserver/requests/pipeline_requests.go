// Package requests defines the inbound HTTP payloads.
package requests

import (
	"strings"

	"github.com/google/uuid"

	"aurixa/services/orchestration-engine/internal/domain/pipeline"
)

// CreatePipelineRequest is the body for POST /v1/pipelines and its
// streaming variant.
type CreatePipelineRequest struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt" binding:"required"`
	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id"`
	PatientID *int   `json:"patient_id"`
}

// ToDomain converts the request into a pipeline request, minting a session
// ID when the client did not supply one.
func (r *CreatePipelineRequest) ToDomain() pipeline.PipelineRequest {
	sessionID := strings.TrimSpace(r.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return pipeline.PipelineRequest{
		SessionID: sessionID,
		Prompt:    r.Prompt,
		TenantID:  r.TenantID,
		UserID:    r.UserID,
		PatientID: r.PatientID,
	}
}
