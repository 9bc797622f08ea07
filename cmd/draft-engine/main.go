package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coursekit/draft-engine/internal/api"
	"github.com/coursekit/draft-engine/internal/cleanup"
	"github.com/coursekit/draft-engine/internal/config"
	"github.com/coursekit/draft-engine/internal/enrich"
	"github.com/coursekit/draft-engine/internal/services"
	"github.com/coursekit/draft-engine/internal/session"
	"github.com/coursekit/draft-engine/internal/storage"
	"github.com/coursekit/draft-engine/internal/submit"
	"github.com/coursekit/draft-engine/internal/templates"
	"github.com/coursekit/draft-engine/internal/uploads"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting draft-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize the submission audit repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Enrichment job store: Redis when configured, in-process otherwise
	var jobs enrich.Store
	if cfg.Redis.Address != "" {
		redisStore, err := enrich.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.JobTTL)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		jobs = redisStore
		slog.Info("redis connected successfully", "address", cfg.Redis.Address)
	} else {
		jobs = enrich.NewMemoryStore()
		slog.Warn("redis not configured, enrichment jobs are kept in memory")
	}

	// External collaborators
	objectStorage := services.NewHTTPObjectStorage(cfg.Storage.UploadURL, cfg.Storage.APIKey, cfg.Storage.Timeout)
	enrichment := services.NewHTTPEnrichment(cfg.Enrichment.URL, "", cfg.Enrichment.Timeout)
	courses := services.NewHTTPCourseAPI(cfg.Courses.URL, cfg.Courses.Timeout)

	// Load draft templates
	templateLoader := templates.NewLoader()
	if err := templateLoader.LoadFromDir(cfg.Templates.Dir); err != nil {
		slog.Warn("failed to load templates from dir", "dir", cfg.Templates.Dir, "error", err)
	}

	// Core components
	sessions := session.NewManager(templateLoader, cfg.Staging.Dir, cfg.Session.TTL)
	pipeline := submit.NewPipeline(uploads.NewOrchestrator(objectStorage, cfg.Uploads.MaxConcurrent), courses, repo)
	bus := enrich.NewEventBus()
	runner := enrich.NewRunner(enrichment, objectStorage, jobs, bus, cfg.Enrichment.Timeout)

	// Initialize cleanup worker
	cleaner := cleanup.NewCleaner(sessions, cfg.Cleanup.Interval)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cleanup worker
	cleaner.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, sessions, templateLoader, pipeline, runner, jobs, bus, repo)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := jobs.Close(); err != nil {
		slog.Error("job store close error", "error", err)
	}
	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("draft-engine stopped")
}
