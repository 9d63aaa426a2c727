// Package collaborators holds the HTTP clients for the platform services
// the pipeline depends on: LLM Router, RAG Service, Agent Runtime, Safety
// Guardrails and the observability collector.
package collaborators

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"aurixa/services/orchestration-engine/internal/domain/pipeline"
	"aurixa/services/orchestration-engine/internal/domain/retry"
	"aurixa/services/orchestration-engine/internal/infrastructure/metrics"
)

// baseClient carries the shared plumbing for one collaborator: a resty
// client pinned to the collaborator's base URL and the retry policy for
// transient failures.
type baseClient struct {
	http    *resty.Client
	service string
	policy  retry.Policy
	log     zerolog.Logger
}

func newBaseClient(service, baseURL string, timeout time.Duration, policy retry.Policy, log zerolog.Logger) baseClient {
	return baseClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
		service: service,
		policy:  policy,
		log:     log,
	}
}

// postJSON posts body to path and decodes a 2xx response into T. Transport
// failures are retried per the client's policy; non-2xx responses are
// definitive and returned immediately as collaborator errors.
func postJSON[T any](ctx context.Context, c *baseClient, op, path string, body any) (*T, error) {
	return retry.ExecuteWithResult(ctx, c.policy, pipeline.IsTransient, func(ctx context.Context, attempt int) (*T, error) {
		if attempt > 0 {
			metrics.RecordCollaboratorRetry(c.service)
			c.log.Warn().
				Str("service", c.service).
				Str("op", op).
				Int("attempt", attempt).
				Msg("retrying collaborator call")
		}

		var result T
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&result).
			Post(path)
		if err != nil {
			return nil, pipeline.NewTransportError(c.service, op, err)
		}
		if resp.IsError() {
			return nil, pipeline.NewCollaboratorError(c.service, op, resp.StatusCode(), strings.TrimSpace(resp.String()))
		}
		return &result, nil
	})
}
