package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"aurixa/services/orchestration-engine/internal/domain/conversation"
	"aurixa/services/orchestration-engine/internal/domain/pipeline"
	"aurixa/services/orchestration-engine/internal/interfaces/httpserver/handlers"
	"aurixa/services/orchestration-engine/internal/utils/platformerrors"
)

// MockPipelineService is a mock implementation of handlers.PipelineService.
type MockPipelineService struct {
	RunFunc       func(ctx context.Context, req pipeline.PipelineRequest) (*pipeline.ConversationState, error)
	RunStreamFunc func(ctx context.Context, req pipeline.PipelineRequest, emitter pipeline.EventEmitter) error
}

func (m *MockPipelineService) Run(ctx context.Context, req pipeline.PipelineRequest) (*pipeline.ConversationState, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockPipelineService) RunStream(ctx context.Context, req pipeline.PipelineRequest, emitter pipeline.EventEmitter) error {
	if m.RunStreamFunc != nil {
		return m.RunStreamFunc(ctx, req, emitter)
	}
	return nil
}

// MockConversationReader is a mock implementation of handlers.ConversationReader.
type MockConversationReader struct {
	FindBySessionIDFunc func(ctx context.Context, sessionID string) (*conversation.Conversation, error)
	ListByPatientFunc   func(ctx context.Context, patientID string, limit int) ([]*conversation.Conversation, error)
}

func (m *MockConversationReader) FindBySessionID(ctx context.Context, sessionID string) (*conversation.Conversation, error) {
	if m.FindBySessionIDFunc != nil {
		return m.FindBySessionIDFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *MockConversationReader) ListByPatient(ctx context.Context, patientID string, limit int) ([]*conversation.Conversation, error) {
	if m.ListByPatientFunc != nil {
		return m.ListByPatientFunc(ctx, patientID, limit)
	}
	return nil, nil
}

func newTestRouter(service handlers.PipelineService, reader handlers.ConversationReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	handler := handlers.NewPipelineHandler(service, reader, zerolog.Nop())
	engine.POST("/v1/pipelines", handler.Create)
	engine.POST("/v1/pipelines/stream", handler.CreateStream)
	engine.GET("/v1/pipelines/:session_id", handler.GetBySession)
	engine.GET("/v1/patients/:patient_id/conversations", handler.ListPatientConversations)
	return engine
}

func stateFixture(sessionID, final string) *pipeline.ConversationState {
	now := time.Now().UTC()
	end := now.Add(50 * time.Millisecond)
	return &pipeline.ConversationState{
		SessionID:     sessionID,
		FinalResponse: final,
		Steps: []conversation.PipelineStep{
			{Name: pipeline.StepClassifyIntent, Status: conversation.StepStatusSuccess, StartTime: now, EndTime: &end},
		},
		CreatedAt: now,
		UpdatedAt: end,
	}
}

func TestCreateReturnsPipelineResult(t *testing.T) {
	var gotReq pipeline.PipelineRequest
	service := &MockPipelineService{
		RunFunc: func(_ context.Context, req pipeline.PipelineRequest) (*pipeline.ConversationState, error) {
			gotReq = req
			return stateFixture(req.SessionID, "final answer"), nil
		},
	}
	router := newTestRouter(service, &MockConversationReader{})

	body := `{"session_id":"sess-1","prompt":"what is asthma?","tenant_id":"clinic-a","user_id":"u1"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/pipelines", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["session_id"] != "sess-1" {
		t.Errorf("session_id = %v", resp["session_id"])
	}
	if resp["final_response"] != "final answer" {
		t.Errorf("final_response = %v", resp["final_response"])
	}
	if gotReq.TenantID != "clinic-a" || gotReq.UserID != "u1" {
		t.Errorf("request scope not forwarded: %+v", gotReq)
	}
}

func TestCreateMintsSessionID(t *testing.T) {
	service := &MockPipelineService{
		RunFunc: func(_ context.Context, req pipeline.PipelineRequest) (*pipeline.ConversationState, error) {
			if req.SessionID == "" {
				t.Error("expected a minted session id")
			}
			return stateFixture(req.SessionID, "ok"), nil
		},
	}
	router := newTestRouter(service, &MockConversationReader{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/pipelines", bytes.NewBufferString(`{"prompt":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestCreateRejectsMissingPrompt(t *testing.T) {
	router := newTestRouter(&MockPipelineService{}, &MockConversationReader{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/pipelines", bytes.NewBufferString(`{"session_id":"s"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateMapsCollaboratorFailureToBadGateway(t *testing.T) {
	service := &MockPipelineService{
		RunFunc: func(_ context.Context, req pipeline.PipelineRequest) (*pipeline.ConversationState, error) {
			cause := pipeline.NewCollaboratorError("rag-service", "retrieve", 500, "index unavailable")
			return nil, pipeline.NewExecutionError(req.SessionID, pipeline.StepKnowledgeRetrieval, cause)
		},
	}
	router := newTestRouter(service, &MockConversationReader{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/pipelines", bytes.NewBufferString(`{"prompt":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502, body %s", w.Code, w.Body.String())
	}
}

func TestCreateStreamEmitsNDJSON(t *testing.T) {
	service := &MockPipelineService{
		RunStreamFunc: func(_ context.Context, _ pipeline.PipelineRequest, emitter pipeline.EventEmitter) error {
			emitter.Emit(pipeline.StreamEvent{Event: pipeline.EventStatus, Message: "Generating response..."})
			emitter.Emit(pipeline.StreamEvent{Event: pipeline.EventTextDelta, Delta: "Hel"})
			emitter.Emit(pipeline.StreamEvent{Event: pipeline.EventTextDelta, Delta: "lo"})
			emitter.Emit(pipeline.StreamEvent{Event: pipeline.EventDone, FinalResponse: "Hello"})
			return nil
		},
	}
	router := newTestRouter(service, &MockConversationReader{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/pipelines/stream", bytes.NewBufferString(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}

	var events []pipeline.StreamEvent
	scanner := bufio.NewScanner(w.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event pipeline.StreamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("line %q is not valid JSON: %v", line, err)
		}
		events = append(events, event)
	}

	if len(events) != 4 {
		t.Fatalf("events = %d, want 4", len(events))
	}
	last := events[len(events)-1]
	if last.Event != pipeline.EventDone || last.FinalResponse != "Hello" {
		t.Errorf("terminal event = %+v", last)
	}
}

func TestGetBySessionReturnsConversation(t *testing.T) {
	now := time.Now().UTC()
	reader := &MockConversationReader{
		FindBySessionIDFunc: func(_ context.Context, sessionID string) (*conversation.Conversation, error) {
			return &conversation.Conversation{
				SessionID: sessionID,
				Metadata:  map[string]string{"prompt": "what is asthma?"},
				Steps: []conversation.PipelineStep{
					{Name: pipeline.StepClassifyIntent, Status: conversation.StepStatusSuccess, StartTime: now},
				},
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		},
	}
	router := newTestRouter(&MockPipelineService{}, reader)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/pipelines/sess-9", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["session_id"] != "sess-9" {
		t.Errorf("session_id = %v", resp["session_id"])
	}
}

func TestGetBySessionNotFound(t *testing.T) {
	reader := &MockConversationReader{
		FindBySessionIDFunc: func(ctx context.Context, sessionID string) (*conversation.Conversation, error) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "conversation not found", nil, "test-uuid")
		},
	}
	router := newTestRouter(&MockPipelineService{}, reader)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/pipelines/missing", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestListPatientConversations(t *testing.T) {
	var gotLimit int
	var gotPatient string
	reader := &MockConversationReader{
		ListByPatientFunc: func(_ context.Context, patientID string, limit int) ([]*conversation.Conversation, error) {
			gotPatient = patientID
			gotLimit = limit
			return []*conversation.Conversation{
				{SessionID: "sess-1"},
				{SessionID: "sess-2"},
			}, nil
		},
	}
	router := newTestRouter(&MockPipelineService{}, reader)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/patients/42/conversations?limit=5", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotPatient != "42" || gotLimit != 5 {
		t.Errorf("patient = %q limit = %d", gotPatient, gotLimit)
	}

	var resp struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("data length = %d, want 2", len(resp.Data))
	}
}

func TestListPatientConversationsError(t *testing.T) {
	reader := &MockConversationReader{
		ListByPatientFunc: func(ctx context.Context, _ string, _ int) ([]*conversation.Conversation, error) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list conversations", errors.New("db down"), "test-uuid")
		},
	}
	router := newTestRouter(&MockPipelineService{}, reader)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/patients/42/conversations", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
