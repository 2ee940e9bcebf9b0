// File: cmd/app/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"llm-search-insight/internal/config"
	"llm-search-insight/internal/domain/ports/adapter"
	aiAdapters "llm-search-insight/internal/infra/adapters/ai"
	searchAdapters "llm-search-insight/internal/infra/adapters/search"
	"llm-search-insight/internal/infra/api"
	pg "llm-search-insight/internal/infra/db/postgres"
	"llm-search-insight/internal/infra/logging"
	"llm-search-insight/internal/infra/metrics"
	red "llm-search-insight/internal/infra/redis"
	"llm-search-insight/internal/infra/sched"
	"llm-search-insight/internal/infra/worker"
	"llm-search-insight/internal/stage"
	"llm-search-insight/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Local .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	analysisRepo := pg.NewAnalysisRepoCacheDecorator(
		pg.NewPostgresAnalysisRepo(pool),
		redisClient,
		cfg.CacheTTL(),
	)

	// ---- AI adapter (provider selection + concurrency cap) ----
	var ai adapter.AIServiceAdapter
	switch {
	case cfg.AI.Provider == "noop":
		ai = aiAdapters.NewNoopAIAdapter()
		logger.Warn().Msg("AI adapter: noop (canned responses)")
	case cfg.AI.Provider == "gemini" && cfg.AI.GeminiKey != "":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: Gemini")
	case cfg.AI.OpenAIKey != "":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: OpenAI")
	default:
		log.Fatalf("no AI provider configured: set ai.openai_key or ai.gemini_key, or ai.provider: noop for dev")
	}
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)

	// ---- Search adapter ----
	var searcher adapter.SearchAdapter
	if cfg.Search.APIKey != "" {
		searcher = searchAdapters.NewBrightDataGateway(cfg.Search.APIKey, cfg.Search.Zone, cfg.Search.BaseURL)
		logger.Info().Str("zone", cfg.Search.Zone).Msg("search adapter: Bright Data")
	} else {
		searcher = searchAdapters.NewNoopSearchAdapter()
		logger.Warn().Msg("search adapter: noop (canned results)")
	}

	// ---- Stage pipeline ----
	harness := stage.NewHarness(cfg.Analysis.StageTimeout, logger)
	collect := stage.NewCollector(ai, searcher, cfg.AI.DefaultModel).Stage()
	process := stage.NewProcessor().Stage()
	visual := stage.NewVisualizer(ai, cfg.AI.DefaultModel).Stage()

	// ---- Worker pool ----
	workers := worker.NewPool(cfg.Analysis.Workers, cfg.Analysis.QueueCapacity, logger)
	workers.Start(ctx)
	defer workers.Stop()

	// ---- Use cases ----
	analysisUC := usecase.NewAnalysisUseCase(
		analysisRepo, harness, collect, process, visual,
		workers, locker, cfg.CacheTTL(), logger,
	)
	statsUC := usecase.NewStatsUseCase(analysisRepo, ai)

	// ---- Stale-job reaper ----
	reaper := sched.NewReaperWorker(cfg.Analysis.ReapInterval, cfg.Analysis.StaleAfter, analysisRepo, logger)
	go func() { _ = reaper.Run(ctx) }()

	// ---- HTTP server ----
	auth := api.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	srv := api.NewServer(analysisUC, statsUC, auth, cfg.Admin.APIKey, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
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
		logger.Error().Err(err).Msg("http server shutdown")
	}
	cancel()
}
