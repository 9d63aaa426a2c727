package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"aurixa/services/orchestration-engine/internal/domain/conversation"
	"aurixa/services/orchestration-engine/internal/domain/pipeline"
	"aurixa/services/orchestration-engine/internal/infrastructure/observability"
	"aurixa/services/orchestration-engine/internal/interfaces/httpserver/requests"
	"aurixa/services/orchestration-engine/internal/interfaces/httpserver/responses"
)

// PipelineService runs conversational pipelines.
type PipelineService interface {
	Run(ctx context.Context, req pipeline.PipelineRequest) (*pipeline.ConversationState, error)
	RunStream(ctx context.Context, req pipeline.PipelineRequest, emitter pipeline.EventEmitter) error
}

// ConversationReader reads persisted pipeline runs.
type ConversationReader interface {
	FindBySessionID(ctx context.Context, sessionID string) (*conversation.Conversation, error)
	ListByPatient(ctx context.Context, patientID string, limit int) ([]*conversation.Conversation, error)
}

// PipelineHandler exposes HTTP entrypoints for pipeline runs.
type PipelineHandler struct {
	service PipelineService
	reader  ConversationReader
	log     zerolog.Logger
}

// NewPipelineHandler constructs the handler.
func NewPipelineHandler(service PipelineService, reader ConversationReader, log zerolog.Logger) *PipelineHandler {
	return &PipelineHandler{
		service: service,
		reader:  reader,
		log:     log.With().Str("handler", "pipeline").Logger(),
	}
}

// Create handles POST /v1/pipelines
// @Summary Run a pipeline
// @Description Runs the full conversational pipeline and returns the final response with step bookkeeping
// @Tags Pipelines
// @Accept json
// @Produce json
// @Param request body requests.CreatePipelineRequest true "Pipeline request"
// @Success 200 {object} responses.PipelineRunResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 502 {object} responses.ErrorResponse
// @Failure 500 {object} responses.ErrorResponse
// @Router /v1/pipelines [post]
func (h *PipelineHandler) Create(c *gin.Context) {
	var req requests.CreatePipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Error:   "invalid request",
			Message: err.Error(),
		})
		return
	}

	domainReq := req.ToDomain()
	ctx, span := observability.StartPipelineSpan(c.Request.Context(), domainReq.SessionID, "full")
	defer span.End()

	state, err := h.service.Run(ctx, domainReq)
	if err != nil {
		span.RecordError(err)
		h.log.Error().Err(err).Str("session_id", domainReq.SessionID).Msg("pipeline run failed")
		responses.HandleError(c, err, "pipeline run failed")
		return
	}

	c.JSON(http.StatusOK, responses.FromState(state))
}

// CreateStream handles POST /v1/pipelines/stream
// @Summary Run a pipeline with streaming output
// @Description Runs the pipeline and streams NDJSON events (status, text_delta, done, error) as stages progress
// @Tags Pipelines
// @Accept json
// @Produce x-ndjson
// @Param request body requests.CreatePipelineRequest true "Pipeline request"
// @Success 200 {string} string "NDJSON event stream"
// @Failure 400 {object} responses.ErrorResponse
// @Router /v1/pipelines/stream [post]
func (h *PipelineHandler) CreateStream(c *gin.Context) {
	var req requests.CreatePipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, responses.ErrorResponse{
			Error:   "invalid request",
			Message: err.Error(),
		})
		return
	}

	domainReq := req.ToDomain()
	ctx, span := observability.StartPipelineSpan(c.Request.Context(), domainReq.SessionID, "stream")
	defer span.End()

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)

	emitter := newNDJSONEmitter(c.Writer)
	if err := h.service.RunStream(ctx, domainReq, emitter); err != nil {
		// The error event has already been emitted; the HTTP status is
		// committed by now, so just log.
		span.RecordError(err)
		h.log.Error().Err(err).Str("session_id", domainReq.SessionID).Msg("streaming pipeline run failed")
	}
}

// GetBySession handles GET /v1/pipelines/:session_id
// @Summary Get a pipeline run
// @Description Fetches a persisted conversation with its ordered steps
// @Tags Pipelines
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} responses.ConversationPayload
// @Failure 404 {object} responses.ErrorResponse
// @Failure 500 {object} responses.ErrorResponse
// @Router /v1/pipelines/{session_id} [get]
func (h *PipelineHandler) GetBySession(c *gin.Context) {
	sessionID := c.Param("session_id")

	conv, err := h.reader.FindBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		responses.HandleError(c, err, "failed to get pipeline run")
		return
	}

	c.JSON(http.StatusOK, responses.FromConversation(conv))
}

// ListPatientConversations handles GET /v1/patients/:patient_id/conversations
// @Summary List a patient's conversations
// @Description Returns the patient's most recent pipeline runs, newest first
// @Tags Patients
// @Produce json
// @Param patient_id path string true "Patient ID"
// @Param limit query int false "Maximum conversations to return" default(20)
// @Success 200 {object} responses.ConversationListResponse
// @Failure 500 {object} responses.ErrorResponse
// @Router /v1/patients/{patient_id}/conversations [get]
func (h *PipelineHandler) ListPatientConversations(c *gin.Context) {
	patientID := c.Param("patient_id")

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	convs, err := h.reader.ListByPatient(c.Request.Context(), patientID, limit)
	if err != nil {
		responses.HandleError(c, err, "failed to list conversations")
		return
	}

	payload := responses.ConversationListResponse{
		Data: make([]responses.ConversationPayload, len(convs)),
	}
	for i, conv := range convs {
		payload.Data[i] = responses.FromConversation(conv)
	}

	c.JSON(http.StatusOK, payload)
}

// ndjsonEmitter writes one JSON object per line and flushes after each so
// clients see events as they happen.
type ndjsonEmitter struct {
	mu      sync.Mutex
	writer  gin.ResponseWriter
	encoder *json.Encoder
}

func newNDJSONEmitter(writer gin.ResponseWriter) *ndjsonEmitter {
	return &ndjsonEmitter{
		writer:  writer,
		encoder: json.NewEncoder(writer),
	}
}

func (e *ndjsonEmitter) Emit(event pipeline.StreamEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.encoder.Encode(event); err != nil {
		return err
	}
	e.writer.Flush()
	return nil
}

var _ pipeline.EventEmitter = (*ndjsonEmitter)(nil)
