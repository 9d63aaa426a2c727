// Package handlers contains the gin HTTP handlers.
package handlers

import (
	"github.com/rs/zerolog"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Pipeline *PipelineHandler
}

// NewProvider constructs the handler provider.
func NewProvider(service PipelineService, reader ConversationReader, log zerolog.Logger) *Provider {
	return &Provider{
		Pipeline: NewPipelineHandler(service, reader, log),
	}
}
