package collaborators

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"aurixa/services/orchestration-engine/internal/domain/pipeline"
	"aurixa/services/orchestration-engine/internal/domain/retry"
)

const safetyService = "safety-guardrails"

// SafetyClient talks to the Safety Guardrails validation endpoint.
type SafetyClient struct {
	baseClient
}

// NewSafetyClient creates a Safety Guardrails client.
func NewSafetyClient(baseURL string, timeout time.Duration, log zerolog.Logger) *SafetyClient {
	return &SafetyClient{
		baseClient: newBaseClient(safetyService, baseURL, timeout, retry.CollaboratorPolicy(), log),
	}
}

type validateRequest struct {
	Text string `json:"text"`
}

// Validate submits generated text for a safety verdict.
func (c *SafetyClient) Validate(ctx context.Context, text string) (*pipeline.ValidationResult, error) {
	return postJSON[pipeline.ValidationResult](ctx, &c.baseClient, "validate", "/api/v1/validate", validateRequest{Text: text})
}

var _ pipeline.SafetyValidator = (*SafetyClient)(nil)
