package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type collectEmitter struct {
	events  []StreamEvent
	failAll bool
}

func (e *collectEmitter) Emit(event StreamEvent) error {
	if e.failAll {
		return errors.New("client gone")
	}
	e.events = append(e.events, event)
	return nil
}

func (e *collectEmitter) byType(eventType string) []StreamEvent {
	var out []StreamEvent
	for _, ev := range e.events {
		if ev.Event == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func TestRunStreamKnowledgePath(t *testing.T) {
	f := newFixture()
	f.router.streamFunc = func(_ context.Context, _ GenerateParams) (TokenStream, error) {
		return newFakeStream("Hel", "lo ", "world"), nil
	}
	c := f.coordinator()
	em := &collectEmitter{}

	err := c.RunStream(context.Background(), PipelineRequest{
		SessionID: "stream-1",
		Prompt:    "what is diabetes?",
	}, em)
	if err != nil {
		t.Fatalf("RunStream() error = %v", err)
	}

	done := em.byType(EventDone)
	if len(done) != 1 {
		t.Fatalf("done events = %d, want 1", len(done))
	}
	if done[0].FinalResponse != "Hello world" {
		t.Errorf("done.final_response = %q, want %q", done[0].FinalResponse, "Hello world")
	}

	deltas := em.byType(EventTextDelta)
	var streamed strings.Builder
	for _, d := range deltas {
		streamed.WriteString(d.Delta)
	}
	if streamed.String() != done[0].FinalResponse {
		t.Errorf("streamed text %q != final response %q", streamed.String(), done[0].FinalResponse)
	}

	if len(em.events) == 0 || em.events[len(em.events)-1].Event != EventDone {
		t.Error("done must be the terminal event")
	}
	if len(em.byType(EventStatus)) == 0 {
		t.Error("expected status events before deltas")
	}

	// Streaming is the low-latency path: no conversation or step rows.
	if len(f.repo.convs) != 0 {
		t.Errorf("conversations persisted = %d, want 0", len(f.repo.convs))
	}
	if got := f.repo.stepNames(); len(got) != 0 {
		t.Errorf("recorded steps = %v, want none", got)
	}
}

func TestRunStreamAgentPath(t *testing.T) {
	f := newFixture()
	f.agent.runFunc = func(_ context.Context, _ string, _ *int) (*AgentResult, error) {
		return &AgentResult{Output: "callback scheduled"}, nil
	}
	c := f.coordinator()
	em := &collectEmitter{}

	err := c.RunStream(context.Background(), PipelineRequest{
		SessionID: "stream-2",
		Prompt:    "schedule a call with my doctor",
	}, em)
	if err != nil {
		t.Fatalf("RunStream() error = %v", err)
	}

	// Agent output is never token-streamed; done carries the whole text.
	if deltas := em.byType(EventTextDelta); len(deltas) != 0 {
		t.Errorf("deltas = %+v, want none on the agent path", deltas)
	}
	done := em.byType(EventDone)
	if len(done) != 1 || done[0].FinalResponse != "callback scheduled" {
		t.Errorf("done = %+v", done)
	}
}

func TestRunStreamBypassesCache(t *testing.T) {
	f := newFixture()
	f.cache.Set("what is diabetes?", "", "", "cached answer")
	f.cache.sets = 0
	routed := false
	f.router.routeFunc = func(_ context.Context, _ string) (*RouteResult, error) {
		routed = true
		return &RouteResult{Model: "gpt-4o-mini", Provider: "openai"}, nil
	}
	c := f.coordinator()
	em := &collectEmitter{}

	err := c.RunStream(context.Background(), PipelineRequest{
		SessionID: "stream-3",
		Prompt:    "what is diabetes?",
	}, em)
	if err != nil {
		t.Fatalf("RunStream() error = %v", err)
	}

	// Streaming runs neither read nor write the cache.
	if !routed {
		t.Error("router should be called even when a cached entry exists")
	}
	if f.cache.sets != 0 {
		t.Errorf("cache sets = %d, want 0", f.cache.sets)
	}
}

func TestRunStreamEmitsErrorEvent(t *testing.T) {
	f := newFixture()
	f.retriever.retrieveFunc = func(_ context.Context, _ string, _ RouteResult) (*RetrievalResult, error) {
		return nil, NewCollaboratorError("rag-service", "retrieve", 500, "index unavailable")
	}
	c := f.coordinator()
	em := &collectEmitter{}

	err := c.RunStream(context.Background(), PipelineRequest{
		SessionID: "stream-4",
		Prompt:    "what is diabetes?",
	}, em)
	if err == nil {
		t.Fatal("RunStream() expected error")
	}

	errEvents := em.byType(EventError)
	if len(errEvents) != 1 {
		t.Fatalf("error events = %d, want 1", len(errEvents))
	}
	if errEvents[0].Message == "" {
		t.Error("error event missing message")
	}
	if len(em.byType(EventDone)) != 0 {
		t.Error("done must not follow an error")
	}
}

func TestRunStreamDetachedClientFinishesRun(t *testing.T) {
	f := newFixture()
	validated := false
	f.safety.validateFunc = func(_ context.Context, text string) (*ValidationResult, error) {
		validated = true
		return &ValidationResult{IsSafe: true, ValidatedText: text}, nil
	}
	c := f.coordinator()
	em := &collectEmitter{failAll: true}

	err := c.RunStream(context.Background(), PipelineRequest{
		SessionID: "stream-5",
		Prompt:    "what is diabetes?",
	}, em)
	if err != nil {
		t.Fatalf("RunStream() error = %v, run should survive a detached client", err)
	}

	// The run completes through validation even with nobody listening.
	if !validated {
		t.Error("validation should still run after the client detaches")
	}
}
