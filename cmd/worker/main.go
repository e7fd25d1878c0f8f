// Package main runs the asynq worker that analyzes uploaded documents.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/busdocs/internal/config"
	"github.com/dharsanguruparan/busdocs/internal/database"
	"github.com/dharsanguruparan/busdocs/internal/logging"
	"github.com/dharsanguruparan/busdocs/internal/repository"
	"github.com/dharsanguruparan/busdocs/internal/s3storage"
	"github.com/dharsanguruparan/busdocs/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("busdocs-worker", cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.QueueEnabled() {
		return fmt.Errorf("REDIS_ADDR is required to run the worker")
	}
	if cfg.StorageBackend == config.BackendMemory {
		return fmt.Errorf("the worker needs the s3 storage backend to read uploaded files")
	}

	handle := database.NewHandle(cfg.DatabaseURL)
	defer handle.Close()
	db, err := handle.DB(ctx)
	if err != nil {
		return err
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	store, err := s3storage.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	runner := worker.NewRunner(
		repository.NewBusRepository(db),
		repository.NewFileRepository(db),
		store,
		repository.NewAnalysisRepository(db),
		cfg.AnalysisWorkers,
		logger,
	)
	processor := worker.NewProcessor(runner, logger)

	srv := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.AnalysisWorkers,
	})

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	logger.Info("worker started", "concurrency", cfg.AnalysisWorkers)
	return srv.Run(processor.Handler())
}
