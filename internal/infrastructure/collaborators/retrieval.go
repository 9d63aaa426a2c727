package collaborators

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"aurixa/services/orchestration-engine/internal/domain/pipeline"
	"aurixa/services/orchestration-engine/internal/domain/retry"
)

const ragService = "rag-service"

// RAGClient talks to the RAG Service's retrieval endpoint.
type RAGClient struct {
	baseClient
}

// NewRAGClient creates a RAG Service client.
func NewRAGClient(baseURL string, timeout time.Duration, log zerolog.Logger) *RAGClient {
	return &RAGClient{
		baseClient: newBaseClient(ragService, baseURL, timeout, retry.CollaboratorPolicy(), log),
	}
}

type retrieveRequest struct {
	Prompt string               `json:"prompt"`
	Intent pipeline.RouteResult `json:"intent"`
}

// Retrieve fetches knowledge base snippets for the prompt.
func (c *RAGClient) Retrieve(ctx context.Context, prompt string, intent pipeline.RouteResult) (*pipeline.RetrievalResult, error) {
	return postJSON[pipeline.RetrievalResult](ctx, &c.baseClient, "retrieve", "/api/v1/retrieve", retrieveRequest{
		Prompt: prompt,
		Intent: intent,
	})
}

var _ pipeline.Retriever = (*RAGClient)(nil)
