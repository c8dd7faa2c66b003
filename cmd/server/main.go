// Command server starts the career diagnosis HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/career-diagnosis/internal/adapter/ai/openai"
	kvredis "github.com/fairyhunter13/career-diagnosis/internal/adapter/kv/redis"
	"github.com/fairyhunter13/career-diagnosis/internal/adapter/observability"
	"github.com/fairyhunter13/career-diagnosis/internal/app"
	"github.com/fairyhunter13/career-diagnosis/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := kvredis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("redis connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = rdb.Close() }()

	if cfg.AIAPIKey == "" {
		slog.Warn("AI_API_KEY not set; AI-backed routes will answer 502")
	}
	aiClient := openai.New(cfg)

	application, err := app.New(cfg, app.Deps{Redis: rdb, AI: aiClient, Breaker: aiClient.Breaker()})
	if err != nil {
		slog.Error("app wiring failed", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.IndexCleanupInterval > 0 {
		go application.Server.Admin.RunIndexJanitor(ctx, cfg.IndexCleanupInterval)
		slog.Info("index janitor started", slog.Duration("interval", cfg.IndexCleanupInterval))
	}

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           application.Handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting",
			slog.Int("port", cfg.Port),
			slog.String("rate_limit_backend", cfg.RateLimitBackend),
			slog.Bool("admin_enabled", cfg.AdminEnabled()))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := srvHTTP.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", slog.Any("error", err))
	}
}
