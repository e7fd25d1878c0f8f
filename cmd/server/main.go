// Package main is the entry point of the busdocs HTTP server.
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
	"github.com/dharsanguruparan/busdocs/internal/fleet"
	"github.com/dharsanguruparan/busdocs/internal/logging"
	"github.com/dharsanguruparan/busdocs/internal/metrics"
	"github.com/dharsanguruparan/busdocs/internal/queue"
	"github.com/dharsanguruparan/busdocs/internal/repository"
	"github.com/dharsanguruparan/busdocs/internal/s3storage"
	"github.com/dharsanguruparan/busdocs/internal/server"
	"github.com/dharsanguruparan/busdocs/internal/signing"
	"github.com/dharsanguruparan/busdocs/internal/storage"
)

const serviceName = "busdocs-server"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	handle := database.NewHandle(cfg.DatabaseURL)
	defer handle.Close()
	db, err := handle.DB(ctx)
	if err != nil {
		return err
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	objects, signer, err := openObjects(ctx, cfg, logger)
	if err != nil {
		return err
	}

	opts := fleet.FileRegistryOptions{SignedURLTTL: cfg.SignedURLTTL, Logger: logger}
	if cfg.QueueEnabled() {
		client := queue.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		opts.Queue = client
	} else {
		logger.Info("analysis queue disabled, REDIS_ADDR is empty")
	}

	buses := repository.NewBusRepository(db)
	statuses := repository.NewStatusRepository(db)
	files := repository.NewFileRepository(db)
	analyses := fleet.NewAnalyses(repository.NewAnalysisRepository(db))

	svc := server.Services{
		Directory: fleet.NewDirectory(buses, cfg.SearchLimit, logger),
		Statuses:  fleet.NewStatusBook(statuses),
		Files:     fleet.NewFileRegistry(files, analyses, objects, opts),
		Analyses:  analyses,
		Reports:   fleet.NewReports(buses, statuses, files),
		Printer:   fleet.NewPrinter(statuses, logger),
		Objects:   objects,
	}
	srv := server.New(cfg, svc, signer, metrics.NewHTTPServerMetrics(serviceName), logger)
	return srv.Run(ctx)
}

// openObjects picks the object store. The memory backend serves its own
// signed links, so it also returns the signer the server validates them with.
func openObjects(ctx context.Context, cfg *config.Config, logger *slog.Logger) (fleet.ObjectStore, *signing.Signer, error) {
	if cfg.StorageBackend == config.BackendMemory {
		logger.Warn("using in-memory object storage, uploads are lost on restart")
		signer := signing.NewSigner(cfg.SigningSecret)
		return storage.NewMemoryStore(signer, cfg.PublicURL), signer, nil
	}
	store, err := s3storage.New(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return store, nil, nil
}
