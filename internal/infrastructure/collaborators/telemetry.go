package collaborators

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"aurixa/services/orchestration-engine/internal/domain/retry"
	"aurixa/services/orchestration-engine/internal/telemetry"
)

const observabilityService = "observability"

// TelemetryClient publishes telemetry events to the observability collector.
// Delivery is best effort and never retried.
type TelemetryClient struct {
	baseClient
	enabled bool
}

// NewTelemetryClient creates a collector client. An empty base URL disables
// publishing entirely.
func NewTelemetryClient(baseURL string, timeout time.Duration, log zerolog.Logger) *TelemetryClient {
	return &TelemetryClient{
		baseClient: newBaseClient(observabilityService, baseURL, timeout, retry.NoRetryPolicy(), log),
		enabled:    baseURL != "",
	}
}

type telemetryAck struct {
	Status string `json:"status,omitempty"`
}

// Publish sends one event to the collector.
func (c *TelemetryClient) Publish(ctx context.Context, event telemetry.Event) error {
	if !c.enabled {
		return nil
	}
	_, err := postJSON[telemetryAck](ctx, &c.baseClient, "publish", "/api/v1/telemetry", event)
	return err
}

var _ telemetry.Publisher = (*TelemetryClient)(nil)
