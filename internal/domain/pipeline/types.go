// Package pipeline implements the conversational pipeline coordinator: the
// state machine that drives one prompt through intent classification, the
// agent/RAG branch, safety validation, caching and step bookkeeping.
package pipeline

import (
	"time"

	"aurixa/services/orchestration-engine/internal/domain/conversation"
)

// PipelineRequest is the immutable input for one pipeline run.
type PipelineRequest struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
	TenantID  string `json:"tenant_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	PatientID *int   `json:"patient_id,omitempty"`
}

// ConversationState is the read-only aggregate returned for a finished run.
// It is assembled from the persisted conversation and its steps, never
// persisted on its own.
type ConversationState struct {
	SessionID     string                      `json:"session_id"`
	Request       PipelineRequest             `json:"request"`
	Steps         []conversation.PipelineStep `json:"steps"`
	FinalResponse string                      `json:"final_response"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// RouteResult is the LLM Router's model selection for a prompt.
type RouteResult struct {
	Model      string  `json:"model"`
	Provider   string  `json:"provider"`
	Confidence float64 `json:"confidence"`
}

// Snippet is one retrieved knowledge base fragment.
type Snippet struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// RetrievalResult carries the knowledge base context for generation.
type RetrievalResult struct {
	Snippets []Snippet      `json:"snippets"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// GenerateParams parameterizes a generation call. Model and Provider come
// from the routing step; Context carries the retrieved snippets.
type GenerateParams struct {
	Model    string
	Provider string
	Prompt   string
	Context  RetrievalResult
}

// GenerationResult is the LLM Router's generated answer.
type GenerationResult struct {
	Content string         `json:"content"`
	Usage   map[string]any `json:"usage,omitempty"`
}

// AgentResult is the outcome of a tool-using agent run.
type AgentResult struct {
	Output    string           `json:"output"`
	ToolCalls []map[string]any `json:"tool_calls,omitempty"`
	Steps     []map[string]any `json:"steps,omitempty"`
}

// ValidationResult is safety validation's verdict on generated text.
// An unsafe verdict is a normal data outcome, not an error.
type ValidationResult struct {
	IsSafe             bool     `json:"is_safe"`
	ValidatedText      string   `json:"validated_text"`
	Issues             []string `json:"issues,omitempty"`
	RequiresEscalation bool     `json:"requires_escalation"`
}

// StepEvent is the telemetry payload emitted after each recorded step.
type StepEvent struct {
	StepName   string  `json:"step_name"`
	DurationMS float64 `json:"latency_ms"`
	SessionID  string  `json:"session_id"`
}

// Step names recorded by the coordinator.
const (
	StepCacheHit           = "cache_hit"
	StepClassifyIntent     = "classify_intent"
	StepAgentExecution     = "agent_execution"
	StepKnowledgeRetrieval = "knowledge_retrieval"
	StepGenerateResponse   = "generate_response"
	StepValidateOutput     = "validate_output"
)

// RedactionPlaceholder replaces unsafe content when the validator does not
// supply sanitized text of its own.
const RedactionPlaceholder = "[Content Redacted]"

// EscalationBanner is prepended to the final response whenever validation
// requests escalation, regardless of the safety verdict.
const EscalationBanner = "⚠️ This may require immediate attention. Please connect with a staff member as soon as possible. "
