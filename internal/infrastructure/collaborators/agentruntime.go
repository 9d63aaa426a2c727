package collaborators

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"aurixa/services/orchestration-engine/internal/domain/pipeline"
	"aurixa/services/orchestration-engine/internal/domain/retry"
)

const agentRuntimeService = "agent-runtime"

// AgentRuntimeClient talks to the Agent Runtime's task endpoint.
type AgentRuntimeClient struct {
	baseClient
}

// NewAgentRuntimeClient creates an Agent Runtime client. Transport failures
// retry like every other collaborator; the runtime dedupes its own tasks.
func NewAgentRuntimeClient(baseURL string, timeout time.Duration, log zerolog.Logger) *AgentRuntimeClient {
	return &AgentRuntimeClient{
		baseClient: newBaseClient(agentRuntimeService, baseURL, timeout, retry.CollaboratorPolicy(), log),
	}
}

type agentTask struct {
	Prompt   string         `json:"prompt"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type agentRunRequest struct {
	Task agentTask `json:"task"`
}

type agentRunResponse struct {
	Result pipeline.AgentResult `json:"result"`
}

// Run submits a tool-using task and waits for its result.
func (c *AgentRuntimeClient) Run(ctx context.Context, prompt string, patientID *int) (*pipeline.AgentResult, error) {
	task := agentTask{Prompt: prompt}
	if patientID != nil {
		task.Metadata = map[string]any{"patient_id": *patientID}
	}

	resp, err := postJSON[agentRunResponse](ctx, &c.baseClient, "run", "/api/v1/run", agentRunRequest{Task: task})
	if err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

var _ pipeline.AgentRuntime = (*AgentRuntimeClient)(nil)
