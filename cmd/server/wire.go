//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"aurixa/services/orchestration-engine/internal/config"
	"aurixa/services/orchestration-engine/internal/domain/conversation"
	"aurixa/services/orchestration-engine/internal/domain/pipeline"
	"aurixa/services/orchestration-engine/internal/infrastructure/cache"
	"aurixa/services/orchestration-engine/internal/infrastructure/collaborators"
	"aurixa/services/orchestration-engine/internal/infrastructure/database"
	"aurixa/services/orchestration-engine/internal/infrastructure/logger"
	conversationrepo "aurixa/services/orchestration-engine/internal/infrastructure/repository/conversation"
	"aurixa/services/orchestration-engine/internal/interfaces/httpserver"
	"aurixa/services/orchestration-engine/internal/interfaces/httpserver/handlers"
	"aurixa/services/orchestration-engine/internal/telemetry"
)

var pipelineSet = wire.NewSet(
	conversationrepo.NewRepository,
	wire.Bind(new(conversation.Repository), new(*conversationrepo.Repository)),
	wire.Bind(new(handlers.ConversationReader), new(*conversationrepo.Repository)),
	newResponseCache,
	wire.Bind(new(pipeline.ResponseCache), new(*cache.ResponseCache)),
	newLLMRouterClient,
	wire.Bind(new(pipeline.LLMRouter), new(*collaborators.LLMRouterClient)),
	newRAGClient,
	wire.Bind(new(pipeline.Retriever), new(*collaborators.RAGClient)),
	newAgentRuntimeClient,
	wire.Bind(new(pipeline.AgentRuntime), new(*collaborators.AgentRuntimeClient)),
	newSafetyClient,
	wire.Bind(new(pipeline.SafetyValidator), new(*collaborators.SafetyClient)),
	newTelemetryClient,
	wire.Bind(new(telemetry.Publisher), new(*collaborators.TelemetryClient)),
	newDispatcher,
	telemetry.NewStepEmitter,
	wire.Bind(new(pipeline.TelemetryEmitter), new(*telemetry.StepEmitter)),
	newStepRecorder,
	newCoordinator,
	wire.Bind(new(handlers.PipelineService), new(*pipeline.Coordinator)),
)

// BuildApplication assembles the orchestration engine with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newDatabaseConfig,
		newGormDB,
		pipelineSet,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newResponseCache(cfg *config.Config) *cache.ResponseCache {
	return cache.NewResponseCache(cfg.CacheTTL, cfg.CacheMaxEntries)
}

func newLLMRouterClient(cfg *config.Config, log zerolog.Logger) *collaborators.LLMRouterClient {
	return collaborators.NewLLMRouterClient(collaborators.LLMRouterConfig{
		BaseURL:         cfg.LLMRouterURL,
		RouteTimeout:    cfg.RouteTimeout,
		GenerateTimeout: cfg.GenerateTimeout,
	}, log)
}

func newRAGClient(cfg *config.Config, log zerolog.Logger) *collaborators.RAGClient {
	return collaborators.NewRAGClient(cfg.RAGServiceURL, cfg.RetrieveTimeout, log)
}

func newAgentRuntimeClient(cfg *config.Config, log zerolog.Logger) *collaborators.AgentRuntimeClient {
	return collaborators.NewAgentRuntimeClient(cfg.AgentRuntimeURL, cfg.AgentTimeout, log)
}

func newSafetyClient(cfg *config.Config, log zerolog.Logger) *collaborators.SafetyClient {
	return collaborators.NewSafetyClient(cfg.SafetyGuardrailsURL, cfg.ValidateTimeout, log)
}

func newTelemetryClient(cfg *config.Config, log zerolog.Logger) *collaborators.TelemetryClient {
	return collaborators.NewTelemetryClient(cfg.ObservabilityURL, cfg.TelemetryTimeout, log)
}

func newDispatcher(publisher telemetry.Publisher, cfg *config.Config, log zerolog.Logger) *telemetry.Dispatcher {
	return telemetry.NewDispatcher(publisher, cfg.TelemetryWorkerCount, cfg.TelemetryQueueSize, log)
}

func newStepRecorder(repo conversation.Repository, emitter pipeline.TelemetryEmitter, log zerolog.Logger) *pipeline.StepRecorder {
	return pipeline.NewStepRecorder(repo, emitter, log)
}

func newCoordinator(
	repo conversation.Repository,
	responseCache pipeline.ResponseCache,
	router pipeline.LLMRouter,
	retriever pipeline.Retriever,
	agent pipeline.AgentRuntime,
	safety pipeline.SafetyValidator,
	recorder *pipeline.StepRecorder,
	cfg *config.Config,
	log zerolog.Logger,
) *pipeline.Coordinator {
	return pipeline.NewCoordinator(pipeline.CoordinatorParams{
		Repo:         repo,
		Cache:        responseCache,
		Router:       router,
		Retriever:    retriever,
		Agent:        agent,
		Safety:       safety,
		Recorder:     recorder,
		CacheEnabled: cfg.CacheEnabled(),
		Logger:       log,
	})
}
