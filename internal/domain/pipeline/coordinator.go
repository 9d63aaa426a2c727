package pipeline

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"aurixa/services/orchestration-engine/internal/domain/conversation"
	"aurixa/services/orchestration-engine/internal/infrastructure/metrics"
)

// Branch labels for pipeline metrics.
const (
	branchAgent     = "agent"
	branchKnowledge = "knowledge"
	branchCache     = "cache"
)

// CoordinatorParams collects the coordinator's dependencies.
type CoordinatorParams struct {
	Repo         conversation.Repository
	Cache        ResponseCache
	Router       LLMRouter
	Retriever    Retriever
	Agent        AgentRuntime
	Safety       SafetyValidator
	Recorder     *StepRecorder
	CacheEnabled bool
	Logger       zerolog.Logger
}

// Coordinator drives one prompt through the full pipeline: cache check,
// intent classification, the agent or retrieval+generation branch, safety
// validation, escalation and cache population. In full-response mode each
// stage is persisted as a step row before any collaborator is called;
// streaming mode runs the same stages without touching the database.
type Coordinator struct {
	repo         conversation.Repository
	cache        ResponseCache
	router       LLMRouter
	retriever    Retriever
	agent        AgentRuntime
	safety       SafetyValidator
	recorder     *StepRecorder
	cacheEnabled bool
	log          zerolog.Logger
}

// NewCoordinator creates the pipeline coordinator.
func NewCoordinator(params CoordinatorParams) *Coordinator {
	return &Coordinator{
		repo:         params.Repo,
		cache:        params.Cache,
		router:       params.Router,
		retriever:    params.Retriever,
		agent:        params.Agent,
		safety:       params.Safety,
		recorder:     params.Recorder,
		cacheEnabled: params.CacheEnabled && params.Cache != nil,
		log:          params.Logger,
	}
}

// Run executes the full pipeline for one request and returns the finished
// conversation state. The first failing step aborts the run; steps recorded
// before the failure stay persisted.
func (c *Coordinator) Run(ctx context.Context, req PipelineRequest) (*ConversationState, error) {
	conv, err := c.beginConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	if cached, ok := c.cachedResponse(ctx, conv, req); ok {
		metrics.RecordPipelineRun(branchCache, "success")
		return c.finishedState(conv, req, cached), nil
	}

	final, branch, err := c.execute(ctx, conv, req, nil)
	if err != nil {
		metrics.RecordPipelineRun(branch, "error")
		return nil, err
	}
	metrics.RecordPipelineRun(branch, "success")
	return c.finishedState(conv, req, final), nil
}

// beginConversation persists the conversation row that anchors all step rows.
func (c *Coordinator) beginConversation(ctx context.Context, req PipelineRequest) (*conversation.Conversation, error) {
	metadata := map[string]string{
		"prompt": req.Prompt,
	}
	if req.TenantID != "" {
		metadata["tenant_id"] = req.TenantID
	}
	if req.UserID != "" {
		metadata["user_id"] = req.UserID
	}
	if req.PatientID != nil {
		metadata["patient_id"] = strconv.Itoa(*req.PatientID)
	}

	conv := conversation.NewConversation(req.SessionID, metadata)
	if err := c.repo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// cachedResponse serves an eligible prompt from the response cache. Agent
// prompts never hit the cache: tool runs have side effects that a memoized
// answer would hide.
func (c *Coordinator) cachedResponse(ctx context.Context, conv *conversation.Conversation, req PipelineRequest) (string, bool) {
	if !c.cacheEnabled || IsAgentWorthy(req.Prompt) {
		return "", false
	}
	cached, ok := c.cache.Get(req.Prompt, req.TenantID, req.UserID)
	if !ok {
		metrics.RecordCacheMiss()
		return "", false
	}
	metrics.RecordCacheHit()
	c.recorder.RecordCompletedStep(ctx, conv, StepCacheHit,
		map[string]string{"prompt": req.Prompt},
		map[string]bool{"cached": true},
	)
	c.log.Debug().Str("session_id", req.SessionID).Msg("serving cached response")
	return cached, true
}

// execute runs classification, the branch and validation. A non-nil conv
// records each stage as a step row; a non-nil sink streams progress and
// generation chunks as they arrive. Both modes share this path, so identical
// collaborator responses always produce identical final text.
func (c *Coordinator) execute(ctx context.Context, conv *conversation.Conversation, req PipelineRequest, sink *eventSink) (string, string, error) {
	sink.status("Classifying intent...")
	route, err := RunStep(ctx, c.recorder, conv, StepClassifyIntent,
		map[string]string{"prompt": req.Prompt},
		func(ctx context.Context) (*RouteResult, error) {
			return c.router.Route(ctx, req.Prompt)
		})
	if err != nil {
		return "", branchKnowledge, NewExecutionError(req.SessionID, StepClassifyIntent, err)
	}

	var generated string
	branch := branchKnowledge
	if IsAgentWorthy(req.Prompt) {
		branch = branchAgent
		generated, err = c.runAgentBranch(ctx, conv, req, sink)
		if err != nil {
			return "", branch, err
		}
	}

	// Agent prompts whose run produced no usable output fall through to
	// retrieval and generation.
	if generated == "" {
		branch = branchKnowledge
		generated, err = c.runKnowledgeBranch(ctx, conv, req, route, sink)
		if err != nil {
			return "", branch, err
		}
	}

	sink.status("Validating...")
	verdict, err := RunStep(ctx, c.recorder, conv, StepValidateOutput,
		map[string]string{"text": generated},
		func(ctx context.Context) (*ValidationResult, error) {
			return c.safety.Validate(ctx, generated)
		})
	if err != nil {
		return "", branch, NewExecutionError(req.SessionID, StepValidateOutput, err)
	}

	final := finalizeResponse(generated, verdict)

	// Cache eligibility mirrors the lookup: only non-agent prompts, and only
	// on the persisted path. Streaming runs never populate the cache.
	if conv != nil && c.cacheEnabled && !IsAgentWorthy(req.Prompt) && final != "" {
		c.cache.Set(req.Prompt, req.TenantID, req.UserID, final)
	}

	return final, branch, nil
}

func (c *Coordinator) runAgentBranch(ctx context.Context, conv *conversation.Conversation, req PipelineRequest, sink *eventSink) (string, error) {
	sink.status("Running agent...")
	result, err := RunStep(ctx, c.recorder, conv, StepAgentExecution,
		map[string]any{"prompt": req.Prompt, "patient_id": req.PatientID},
		func(ctx context.Context) (*AgentResult, error) {
			return c.agent.Run(ctx, req.Prompt, req.PatientID)
		})
	if err != nil {
		return "", NewExecutionError(req.SessionID, StepAgentExecution, err)
	}
	// Agent output is not token-streamed; the done event carries it whole.
	return result.Output, nil
}

func (c *Coordinator) runKnowledgeBranch(ctx context.Context, conv *conversation.Conversation, req PipelineRequest, route *RouteResult, sink *eventSink) (string, error) {
	sink.status("Searching knowledge base...")
	retrieval, err := RunStep(ctx, c.recorder, conv, StepKnowledgeRetrieval,
		map[string]string{"prompt": req.Prompt},
		func(ctx context.Context) (*RetrievalResult, error) {
			return c.retriever.Retrieve(ctx, req.Prompt, *route)
		})
	if err != nil {
		return "", NewExecutionError(req.SessionID, StepKnowledgeRetrieval, err)
	}

	params := GenerateParams{
		Model:    route.Model,
		Provider: route.Provider,
		Prompt:   req.Prompt,
		Context:  *retrieval,
	}

	sink.status("Generating response...")
	gen, err := RunStep(ctx, c.recorder, conv, StepGenerateResponse,
		map[string]string{"prompt": req.Prompt, "model": route.Model, "provider": route.Provider},
		func(ctx context.Context) (*GenerationResult, error) {
			if sink == nil {
				return c.router.Generate(ctx, params)
			}
			return c.streamGeneration(ctx, params, sink)
		})
	if err != nil {
		return "", NewExecutionError(req.SessionID, StepGenerateResponse, err)
	}
	return gen.Content, nil
}

// streamGeneration drains the router's token stream, forwarding each chunk
// to the sink while accumulating the full text for validation.
func (c *Coordinator) streamGeneration(ctx context.Context, params GenerateParams, sink *eventSink) (*GenerationResult, error) {
	stream, err := c.router.GenerateStream(ctx, params)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var content []byte
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		content = append(content, chunk...)
		sink.delta(chunk)
	}
	return &GenerationResult{Content: string(content)}, nil
}

// finalizeResponse applies the safety verdict: sanitized text wins when the
// validator supplies it, unsafe output without a sanitized form is redacted,
// and escalation prepends the staff banner.
func finalizeResponse(generated string, verdict *ValidationResult) string {
	text := verdict.ValidatedText
	if text == "" {
		if verdict.IsSafe {
			text = generated
		} else {
			text = RedactionPlaceholder
		}
	}
	if verdict.RequiresEscalation {
		text = EscalationBanner + text
	}
	return text
}

func (c *Coordinator) finishedState(conv *conversation.Conversation, req PipelineRequest, final string) *ConversationState {
	now := time.Now().UTC()
	return &ConversationState{
		SessionID:     conv.SessionID,
		Request:       req,
		Steps:         conv.Steps,
		FinalResponse: final,
		CreatedAt:     conv.CreatedAt,
		UpdatedAt:     now,
	}
}
