package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediview-ai-service/internal/config"
	"mediview-ai-service/internal/domain/ports/adapter"
	aiAdapters "mediview-ai-service/internal/infra/adapters/ai"
	pg "mediview-ai-service/internal/infra/db/postgres"
	"mediview-ai-service/internal/infra/logging"
	"mediview-ai-service/internal/infra/metrics"
	red "mediview-ai-service/internal/infra/redis"
	"mediview-ai-service/internal/infra/storage"
	"mediview-ai-service/internal/infra/web"
	"mediview-ai-service/internal/infra/worker"
	"mediview-ai-service/internal/pipeline"
	"mediview-ai-service/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop AI fallback)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (optional; without it the stream gateway polls) ----
	var broadcaster adapter.ProgressBroadcaster
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		broadcaster = red.NewProgressBroadcaster(redisClient, logger)
	} else {
		logger.Warn().Msg("redis not configured; progress streams fall back to polling")
	}

	// ---- Object storage ----
	objStorage, err := storage.NewMinioStorage(&cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("object storage")
	}

	// ---- AI adapters (Gemini -> OpenAI -> Noop) ----
	var vision adapter.VisionAnalysisAdapter
	var embedder adapter.EmbeddingAdapter
	switch {
	case cfg.AI.GeminiKey != "":
		gem, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.VisionModel, cfg.AI.SummaryModel, cfg.AI.EmbeddingModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		vision, embedder = gem, gem
		logger.Info().Str("model", cfg.AI.VisionModel).Msg("AI adapter: Gemini")
	case cfg.AI.OpenAIKey != "":
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.VisionModel, cfg.AI.EmbeddingModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		vision, embedder = oa, oa
		logger.Info().Str("model", cfg.AI.VisionModel).Msg("AI adapter: OpenAI")
	default:
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("no AI provider configured: set ai.gemini_key or ai.openai_key")
		}
		vision = aiAdapters.NewNoopVisionAdapter()
		embedder = aiAdapters.NewNoopEmbeddingAdapter()
		logger.Warn().Msg("AI adapter: noop (dev mode)")
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	jobRepo := pg.NewJobRepo(pool, tm)
	studyRepo := pg.NewStudyRepo(pool, tm)
	docRepo := pg.NewDocumentRepo(pool)

	// ---- Use cases ----
	knowledgeUC := usecase.NewKnowledgeUseCase(docRepo, embedder, cfg.RAG.EmbedContentChars, logger)

	stages := []pipeline.Stage{
		pipeline.NewClassifyStage(vision, logger),
	}
	if cfg.RAG.Enabled {
		stages = append(stages, pipeline.NewRAGEnhanceStage(knowledgeUC, vision, cfg.RAG.TopK, cfg.RAG.DocContextChars, logger))
	}
	stages = append(stages,
		pipeline.NewSummarizeStage(vision, cfg.RAG.ConfidenceThreshold, logger),
		pipeline.NewPersistStage(studyRepo),
	)
	executor := pipeline.NewExecutor(jobRepo, studyRepo, objStorage, broadcaster, stages, logger)

	workerPool := worker.NewPool(cfg.Worker.Workers, logger)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	analysisUC := usecase.NewAnalysisUseCase(jobRepo, studyRepo, objStorage, vision, executor, workerPool, cfg.RAG.ConfidenceThreshold, logger)
	streamUC := usecase.NewStreamUseCase(jobRepo, broadcaster, cfg.Server.PollInterval, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, !cfg.Runtime.Dev, cfg.Auth.TokenTTL)
	srv := web.NewServer(analysisUC, knowledgeUC, streamUC, auth, cfg.Auth.AdminUser, cfg.Auth.AdminPassword, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
