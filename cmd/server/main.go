// Package main is the entrypoint for the logsink server and its admin
// commands.
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

	"github.com/kiranshivaraju/logsink/internal/api"
	"github.com/kiranshivaraju/logsink/internal/api/handler"
	mw "github.com/kiranshivaraju/logsink/internal/api/middleware"
	"github.com/kiranshivaraju/logsink/internal/api/response"
	"github.com/kiranshivaraju/logsink/internal/cache"
	"github.com/kiranshivaraju/logsink/internal/config"
	"github.com/kiranshivaraju/logsink/internal/logs"
	"github.com/kiranshivaraju/logsink/internal/stats"
	"github.com/kiranshivaraju/logsink/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("logsink failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("config loaded", "env", cfg.Server.Env, "listen_addr", cfg.Server.ListenAddr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Open the database and apply the schema
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	slog.Info("database ready")

	// 2. Redis backs the ingest rate limiter only
	var limiterCache cache.Cache
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()

		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		limiterCache = redisCache
		slog.Info("redis connected")
	}

	// 3. Services
	logSvc := logs.NewService(st, cfg.Ingest.HiddenPrefixes)
	statsSvc := stats.NewService(st, nil)

	// 4. Build router with dependencies
	if !cfg.Auth.BaselineConfigured() {
		slog.Warn("no baseline credentials configured, admin views are open")
	}

	deps := api.Dependencies{
		Auth:      mw.NewAuth(cfg.Auth),
		RateLimit: mw.NewRateLimit(limiterCache, cfg.Ingest.RateLimit),

		HealthHandler: healthHandler(st, limiterCache),
		QueryIP:       handler.NewQueryIPHandler(),

		UploadLog:        handler.NewUploadLogHandler(logSvc),
		UploadStatistics: handler.NewUploadStatisticsHandler(statsSvc),
		UserLog:          handler.NewUserLogHandler(logSvc),

		LogList:      handler.NewLogListHandler(logSvc),
		LogContent:   handler.NewLogContentHandler(logSvc),
		LogComplete:  handler.NewLogCompleteHandler(logSvc),
		LogRemove:    handler.NewLogRemoveHandler(logSvc),
		ClearLog:     handler.NewClearLogHandler(logSvc),
		LogPage:      handler.NewLogContentPageHandler(logSvc),
		StatsPage:    handler.NewStatisticsUsersHandler(statsSvc),
		IndexHandler: handler.NewIndexHandler(),
	}

	router := api.NewRouter(deps)

	// 5. Start HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity. A nil cache is
// reported as disabled and does not degrade the service.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "disabled",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if c != nil {
			checks["cache"] = "ok"
			if err := c.Ping(r.Context()); err != nil {
				checks["cache"] = "degraded"
			}
		}

		degraded := checks["database"] == "degraded" || checks["cache"] == "degraded"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
