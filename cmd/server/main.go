// Package main is the entrypoint for the TrainHub API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kiranshivaraju/trainhub/internal/api"
	"github.com/kiranshivaraju/trainhub/internal/api/handler"
	mw "github.com/kiranshivaraju/trainhub/internal/api/middleware"
	"github.com/kiranshivaraju/trainhub/internal/api/response"
	"github.com/kiranshivaraju/trainhub/internal/auth"
	"github.com/kiranshivaraju/trainhub/internal/cache"
	"github.com/kiranshivaraju/trainhub/internal/config"
	"github.com/kiranshivaraju/trainhub/internal/hub"
	"github.com/kiranshivaraju/trainhub/internal/id"
	"github.com/kiranshivaraju/trainhub/internal/queue"
	"github.com/kiranshivaraju/trainhub/internal/store"
	"github.com/kiranshivaraju/trainhub/internal/trainer"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "trainer", cfg.Trainer.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create id generator and store
	gen, err := id.NewGenerator(cfg.Server.NodeID)
	if err != nil {
		return fmt.Errorf("create id generator: %w", err)
	}
	pgStore := store.NewPostgresStore(pool, gen)

	// 6. Start the broadcast hub
	broadcastHub := hub.New(gen)
	go broadcastHub.Run(ctx)

	// 7. Create trainer client and start the job queue
	trainerClient := trainer.NewHTTPClient(cfg.Trainer.BaseURL, trainer.DBParams{
		Host:     cfg.Database.Host,
		Port:     strconv.Itoa(cfg.Database.Port),
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
	})

	jobQueue := queue.New(broadcastHub, trainerClient, pgStore, redisCache, queue.Config{
		MaxFilesPerJob:    cfg.Queue.MaxFilesPerJob,
		MaxConcurrentJobs: cfg.Queue.MaxConcurrentJobs,
		Capacity:          cfg.Queue.Capacity,
		UploadDir:         cfg.Queue.UploadDir,
	})
	jobQueue.Start(ctx)
	slog.Info("training queue started",
		"max_files_per_job", cfg.Queue.MaxFilesPerJob,
		"max_concurrent_jobs", cfg.Queue.MaxConcurrentJobs,
	)

	// 8. Build router with dependencies
	authMW := mw.NewAuth(auth.NewValidator(cfg.Auth.JWTSecret))
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      authMW,
		RateLimit: rateLimit,

		HealthHandler:    healthHandler(pgStore, redisCache),
		TrainHandler:     handler.NewTrainHandler(pgStore, jobQueue),
		StatusHandler:    handler.NewStatusHandler(jobQueue, redisCache),
		SubscribeHandler: handler.NewSubscribeHandler(broadcastHub),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: WebSocket subscriptions outlive any sane value.
		IdleTimeout: 60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
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
