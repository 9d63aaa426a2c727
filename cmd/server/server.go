package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"

	"aurixa/services/orchestration-engine/internal/config"
	"aurixa/services/orchestration-engine/internal/domain/pipeline"
	"aurixa/services/orchestration-engine/internal/infrastructure/cache"
	"aurixa/services/orchestration-engine/internal/infrastructure/collaborators"
	"aurixa/services/orchestration-engine/internal/infrastructure/database"
	"aurixa/services/orchestration-engine/internal/infrastructure/logger"
	"aurixa/services/orchestration-engine/internal/infrastructure/observability"
	conversationrepo "aurixa/services/orchestration-engine/internal/infrastructure/repository/conversation"
	"aurixa/services/orchestration-engine/internal/interfaces/httpserver"
	"aurixa/services/orchestration-engine/internal/telemetry"
)

// @title Orchestration Engine API
// @version 1.0
// @description Coordinates the AURIXA conversational pipeline: intent classification, agent and knowledge branches, safety validation and response caching.
// @BasePath /
type Application struct {
	httpServer *httpserver.HttpServer
	dispatcher *telemetry.Dispatcher
	cfg        *config.Config
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, dispatcher *telemetry.Dispatcher, cfg *config.Config, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log,
	}
}

// Start runs the HTTP server and telemetry dispatcher until ctx is cancelled.
func (a *Application) Start(ctx context.Context) error {
	a.dispatcher.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.httpServer.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		return a.dispatcher.Stop(drainCtx)
	})

	return g.Wait()
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	conversationRepository := conversationrepo.NewRepository(db)
	responseCache := cache.NewResponseCache(cfg.CacheTTL, cfg.CacheMaxEntries)

	routerClient := collaborators.NewLLMRouterClient(collaborators.LLMRouterConfig{
		BaseURL:         cfg.LLMRouterURL,
		RouteTimeout:    cfg.RouteTimeout,
		GenerateTimeout: cfg.GenerateTimeout,
	}, log)
	ragClient := collaborators.NewRAGClient(cfg.RAGServiceURL, cfg.RetrieveTimeout, log)
	agentClient := collaborators.NewAgentRuntimeClient(cfg.AgentRuntimeURL, cfg.AgentTimeout, log)
	safetyClient := collaborators.NewSafetyClient(cfg.SafetyGuardrailsURL, cfg.ValidateTimeout, log)
	telemetryClient := collaborators.NewTelemetryClient(cfg.ObservabilityURL, cfg.TelemetryTimeout, log)

	dispatcher := telemetry.NewDispatcher(telemetryClient, cfg.TelemetryWorkerCount, cfg.TelemetryQueueSize, log)
	stepEmitter := telemetry.NewStepEmitter(dispatcher)

	recorder := pipeline.NewStepRecorder(conversationRepository, stepEmitter, log)
	coordinator := pipeline.NewCoordinator(pipeline.CoordinatorParams{
		Repo:         conversationRepository,
		Cache:        responseCache,
		Router:       routerClient,
		Retriever:    ragClient,
		Agent:        agentClient,
		Safety:       safetyClient,
		Recorder:     recorder,
		CacheEnabled: cfg.CacheEnabled(),
		Logger:       log,
	})

	httpServer := httpserver.New(cfg, log, coordinator, conversationRepository)
	app := NewApplication(httpServer, dispatcher, cfg, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
