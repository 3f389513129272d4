// Package main implements the deckgen worker: the process that owns
// the job runner, provider registry, and stores behind asynchronous
// slide generation.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql

	"github.com/prenwyn/deckgen/internal/config"
	"github.com/prenwyn/deckgen/internal/generation"
	"github.com/prenwyn/deckgen/internal/jobs"
	"github.com/prenwyn/deckgen/internal/platform/gemini"
	"github.com/prenwyn/deckgen/internal/platform/localfs"
	"github.com/prenwyn/deckgen/internal/platform/logger"
	"github.com/prenwyn/deckgen/internal/platform/openaicompat"
	"github.com/prenwyn/deckgen/internal/platform/postgres"
	"github.com/prenwyn/deckgen/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
}

// run wires configuration, logging, storage, providers, and the job
// runner together, then blocks until a shutdown signal arrives and all
// in-flight jobs have finalized.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Worker.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("worker configuration loaded",
		"log_level", cfg.Worker.LogLevel,
		"text_concurrency", cfg.Worker.TextConcurrency,
		"image_concurrency", cfg.Worker.ImageConcurrency,
		"text_provider", cfg.Providers.Text,
		"image_provider", cfg.Providers.Image,
		"database_configured", cfg.Database.URL != "")

	store, closeStore, err := openJobStore(cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeStore()

	runner, err := jobs.NewRunner(store, jobs.RunnerConfig{
		TextConcurrency:  cfg.Worker.TextConcurrency,
		ImageConcurrency: cfg.Worker.ImageConcurrency,
		Executor: jobs.ExecutorConfig{
			CallTimeout:    time.Duration(cfg.Worker.CallTimeoutSeconds) * time.Second,
			RetryBaseDelay: time.Duration(cfg.Worker.RetryBaseDelaySeconds) * time.Second,
			MaxAttempts:    cfg.Worker.MaxAttempts,
		},
	}, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create job runner: %w", err)
	}

	images, err := localfs.NewImageSink(cfg.Storage.ImagesDir)
	if err != nil {
		return fmt.Errorf("failed to create image sink: %w", err)
	}

	artifacts, err := localfs.NewArtifactWriter(cfg.Storage.ArtifactsDir)
	if err != nil {
		return fmt.Errorf("failed to create artifact writer: %w", err)
	}

	slides, err := service.NewSlideService(
		runner,
		newRegistry(appLogger),
		service.StaticProviders(cfg.Providers),
		images,
		artifacts,
		appLogger,
	)
	if err != nil {
		return fmt.Errorf("failed to create slide service: %w", err)
	}
	_ = slides // Submission surface for the transport layer.

	appLogger.Info("worker ready")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	appLogger.Info("shutdown signal received, draining in-flight jobs", "signal", sig.String())
	runner.Wait()
	appLogger.Info("worker stopped")

	return nil
}

// openJobStore selects the job store backend: PostgreSQL when a
// database URL is configured, the in-memory store otherwise.
func openJobStore(cfg *config.Config, appLogger *slog.Logger) (jobs.JobStore, func(), error) {
	if cfg.Database.URL == "" {
		appLogger.Info("no database configured, using in-memory job store")
		return jobs.NewMemoryJobStore(), func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	appLogger.Info("database connected and migrated")
	return postgres.NewJobStore(db), func() { db.Close() }, nil
}

// newRegistry registers every provider implementation under the name
// configuration selects it by. Factories run at submission time, so a
// key added to the environment after startup is picked up without a
// restart.
func newRegistry(appLogger *slog.Logger) *generation.Registry {
	registry := generation.NewRegistry()

	registry.RegisterText("gemini", func(ctx context.Context, cfg config.ProvidersConfig) (generation.TextGenerator, error) {
		return gemini.New(ctx, appLogger, cfg.Gemini)
	})
	registry.RegisterImage("gemini", func(ctx context.Context, cfg config.ProvidersConfig) (generation.ImageGenerator, error) {
		return gemini.New(ctx, appLogger, cfg.Gemini)
	})

	registry.RegisterText("vertex", func(ctx context.Context, cfg config.ProvidersConfig) (generation.TextGenerator, error) {
		return gemini.NewVertex(ctx, appLogger, cfg.Vertex)
	})
	registry.RegisterImage("vertex", func(ctx context.Context, cfg config.ProvidersConfig) (generation.ImageGenerator, error) {
		return gemini.NewVertex(ctx, appLogger, cfg.Vertex)
	})

	registry.RegisterText("openai", func(ctx context.Context, cfg config.ProvidersConfig) (generation.TextGenerator, error) {
		return openaicompat.New(appLogger, cfg.OpenAI, openaicompat.Options{})
	})
	registry.RegisterImage("openai", func(ctx context.Context, cfg config.ProvidersConfig) (generation.ImageGenerator, error) {
		return openaicompat.New(appLogger, cfg.OpenAI, openaicompat.Options{})
	})

	return registry
}
