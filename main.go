package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/bc-legal-assistant/server/internal/agent/graph"
	"github.com/bc-legal-assistant/server/internal/agent/model"
	"github.com/bc-legal-assistant/server/internal/core"
	"github.com/bc-legal-assistant/server/internal/documents"
	"github.com/bc-legal-assistant/server/internal/server"
	logx "github.com/bc-legal-assistant/server/pkg/logger"
	pkgredis "github.com/bc-legal-assistant/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis  pkgredis.Config
	Server server.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Pipeline configs
	Classifier model.ClassifierModelConfig
	Response   model.ResponseModelConfig
	Search     model.SearchConfig
	Prompt     model.PromptConfig
	Pipeline   model.PipelineConfig
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load .env file: %v\n", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to process environment config: %v\n", err)
		os.Exit(1)
	}

	logx.Init(logx.LoggerOpts{Environment: cfg.Environment})

	if err := run(cfg); err != nil {
		logx.Fatal().Err(err).Msg("fatal")
	}
}

func run(cfg AppConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner, err := graph.BuildResponseGraph(ctx, graph.Config{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		ClassifierModel: cfg.Classifier,
		ResponseModel:   cfg.Response,
		Search:          cfg.Search,
		Prompt:          cfg.Prompt,
		Pipeline:        cfg.Pipeline,
	})
	if err != nil {
		return fmt.Errorf("build response graph: %w", err)
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	extractor := documents.NewFileExtractor(documents.Config{MaxBytes: cfg.Server.MaxUploadBytes})
	handler := server.NewHandler(runner, extractor, cfg.Server)
	srv := server.New(cfg.Server, server.NewServeMux(handler, limiter, cfg.Server))

	errCh := make(chan error, 1)
	go func() {
		logx.Info().
			Str("port", cfg.Server.Port).
			Str("environment", cfg.Environment.String()).
			Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logx.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logx.Info().Msg("server stopped gracefully")
	return nil
}

// newLimiter prefers the shared Redis limiter and falls back to an in-process
// one when REDIS_URL is unset.
func newLimiter(ctx context.Context, cfg AppConfig) (server.Limiter, func(), error) {
	noop := func() {}
	if cfg.Server.RateLimitRequests <= 0 {
		logx.Info().Msg("rate limiting disabled")
		return nil, noop, nil
	}
	if !cfg.Redis.Enabled() {
		logx.Info().Int("requests", cfg.Server.RateLimitRequests).Dur("window", cfg.Server.RateLimitWindow).Msg("using in-memory rate limiter")
		return server.NewMemoryLimiter(cfg.Server.RateLimitRequests, cfg.Server.RateLimitWindow), noop, nil
	}

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		return nil, noop, fmt.Errorf("init redis client: %w", err)
	}
	logx.Info().Msg("Connected to Redis successfully")

	closeFn := func() {
		if err := rdb.Close(); err != nil {
			logx.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	return server.NewRedisLimiter(rdb, cfg.Server.RateLimitRequests, cfg.Server.RateLimitWindow), closeFn, nil
}
