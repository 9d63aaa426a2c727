package v1

import (
	"github.com/gin-gonic/gin"

	"aurixa/services/orchestration-engine/internal/interfaces/httpserver/handlers"
)

func registerPipelineRoutes(group *gin.RouterGroup, handler *handlers.PipelineHandler) {
	pipelines := group.Group("/pipelines")
	{
		pipelines.POST("", handler.Create)
		pipelines.POST("/stream", handler.CreateStream)
		pipelines.GET("/:session_id", handler.GetBySession)
	}

	patients := group.Group("/patients")
	{
		patients.GET("/:patient_id/conversations", handler.ListPatientConversations)
	}
}
