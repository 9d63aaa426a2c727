// Package routes registers the versioned HTTP routes.
package routes

import (
	"github.com/gin-gonic/gin"

	"aurixa/services/orchestration-engine/internal/interfaces/httpserver/handlers"
	v1 "aurixa/services/orchestration-engine/internal/interfaces/httpserver/routes/v1"
)

// Provider coordinates all route registrations.
type Provider struct {
	V1 *v1.Routes
}

// NewProvider constructs the route provider.
func NewProvider(handlerProvider *handlers.Provider) *Provider {
	return &Provider{
		V1: v1.NewRoutes(handlerProvider),
	}
}

// Register attaches all available routes to the gin engine.
func (p *Provider) Register(engine *gin.Engine) {
	p.V1.Register(engine)
}
