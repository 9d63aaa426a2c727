package collaborators

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"aurixa/services/orchestration-engine/internal/domain/pipeline"
	"aurixa/services/orchestration-engine/internal/domain/retry"
)

const llmRouterService = "llm-router"

// Generation sends a fixed assistant persona; the retrieved context rides
// in the user message ahead of the patient's question.
const systemPrompt = "You are a helpful healthcare assistant. Answer using the provided knowledge base context. If the context does not cover the question, say so and suggest contacting clinic staff."

// Only the highest ranked snippets are passed to generation.
const maxContextSnippets = 5

// LLMRouterClient talks to the LLM Router's route, generate and streaming
// generate endpoints. Routing and generation run on separate clients:
// generation carries a much longer timeout than classification.
type LLMRouterClient struct {
	route         baseClient
	generate      baseClient
	baseURL       string
	streamTimeout time.Duration
}

// LLMRouterConfig holds per-endpoint timeouts for the router client.
type LLMRouterConfig struct {
	BaseURL         string
	RouteTimeout    time.Duration
	GenerateTimeout time.Duration
}

// NewLLMRouterClient creates an LLM Router client.
func NewLLMRouterClient(cfg LLMRouterConfig, log zerolog.Logger) *LLMRouterClient {
	return &LLMRouterClient{
		route:         newBaseClient(llmRouterService, cfg.BaseURL, cfg.RouteTimeout, retry.CollaboratorPolicy(), log),
		generate:      newBaseClient(llmRouterService, cfg.BaseURL, cfg.GenerateTimeout, retry.CollaboratorPolicy(), log),
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		streamTimeout: cfg.GenerateTimeout,
	}
}

type routeRequest struct {
	Prompt string `json:"prompt"`
}

// Route asks the router which model should serve the prompt.
func (c *LLMRouterClient) Route(ctx context.Context, prompt string) (*pipeline.RouteResult, error) {
	return postJSON[pipeline.RouteResult](ctx, &c.route, "route", "/api/v1/route", routeRequest{Prompt: prompt})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generateRequest struct {
	Model    string        `json:"model"`
	Provider string        `json:"provider"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type generateResponse struct {
	Content string         `json:"content"`
	Usage   map[string]any `json:"usage,omitempty"`
}

// Generate produces a full response in one call.
func (c *LLMRouterClient) Generate(ctx context.Context, params pipeline.GenerateParams) (*pipeline.GenerationResult, error) {
	req := newGenerateRequest(params, false)

	resp, err := postJSON[generateResponse](ctx, &c.generate, "generate", "/api/v1/generate", req)
	if err != nil {
		return nil, err
	}
	return &pipeline.GenerationResult{Content: resp.Content, Usage: resp.Usage}, nil
}

// GenerateStream opens the router's NDJSON stream. The call is made exactly
// once: a partially consumed stream cannot be retried safely.
func (c *LLMRouterClient) GenerateStream(ctx context.Context, params pipeline.GenerateParams) (pipeline.TokenStream, error) {
	body, err := json.Marshal(newGenerateRequest(params, true))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/generate/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	httpClient := &http.Client{Timeout: c.streamTimeout}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, pipeline.NewTransportError(llmRouterService, "generate_stream", err)
	}

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, pipeline.NewCollaboratorError(llmRouterService, "generate_stream", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	return &ndjsonStream{
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

func newGenerateRequest(params pipeline.GenerateParams, stream bool) generateRequest {
	return generateRequest{
		Model:    params.Model,
		Provider: params.Provider,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Knowledge base context:\n" + formatContext(params.Context) + "\n\nUser question: " + params.Prompt},
		},
		Stream: stream,
	}
}

// formatContext renders the top snippets as numbered, source-attributed
// blocks separated by blank lines.
func formatContext(result pipeline.RetrievalResult) string {
	snippets := result.Snippets
	if len(snippets) > maxContextSnippets {
		snippets = snippets[:maxContextSnippets]
	}
	if len(snippets) == 0 {
		return "No knowledge base context is available for this question."
	}

	blocks := make([]string, len(snippets))
	for i, s := range snippets {
		blocks[i] = fmt.Sprintf("[%d] Source: %s\n%s", i+1, s.Source, s.Content)
	}
	return strings.Join(blocks, "\n\n")
}

// Ensure interface compliance.
var _ pipeline.LLMRouter = (*LLMRouterClient)(nil)

// ndjsonStream implements pipeline.TokenStream over the router's NDJSON
// wire format: one JSON object per line, terminated by a done record.
type ndjsonStream struct {
	resp   *http.Response
	reader *bufio.Reader
}

type streamChunk struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *ndjsonStream) Recv() (string, error) {
	for {
		line, readErr := s.reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return "", pipeline.NewTransportError(llmRouterService, "generate_stream", readErr)
		}

		chunk, ok := parseChunk(line)
		if ok {
			switch chunk.Type {
			case "delta":
				if chunk.Content != "" {
					return chunk.Content, nil
				}
			case "done":
				return "", io.EOF
			case "error":
				return "", fmt.Errorf("stream error from %s: %s", llmRouterService, chunk.Message)
			}
			// Unknown record types are skipped.
		}

		if readErr != nil {
			return "", io.EOF
		}
	}
}

func parseChunk(line string) (streamChunk, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return streamChunk{}, false
	}
	var chunk streamChunk
	if err := json.Unmarshal([]byte(line), &chunk); err != nil {
		// Skip malformed lines
		return streamChunk{}, false
	}
	return chunk, true
}

func (s *ndjsonStream) Close() error {
	if s.resp != nil && s.resp.Body != nil {
		return s.resp.Body.Close()
	}
	return nil
}
