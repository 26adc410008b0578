package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/packimport/internal/archive"
	"github.com/playperu/packimport/internal/config"
	"github.com/playperu/packimport/internal/database"
	"github.com/playperu/packimport/internal/handler/health"
	"github.com/playperu/packimport/internal/importer"
	"github.com/playperu/packimport/internal/migrations"
	"github.com/playperu/packimport/internal/server"
	"github.com/playperu/packimport/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Stores ---
	packs := store.NewPackStore(db)
	files := store.NewFileStore(db)

	removed, err := store.SweepOrphans(ctx, packs, files, logger)
	if err != nil {
		return fmt.Errorf("sweeping orphaned media: %w", err)
	}
	if removed > 0 {
		logger.Info("orphan sweep finished", "files", removed)
	}

	imp := importer.New(packs, files, logger, importer.Config{
		Limits: importer.Limits{
			Archive: archive.Limits{
				MaxEntries:    cfg.ImportMaxEntries,
				MaxEntryBytes: cfg.ImportMaxEntryBytes,
			},
			MaxDepth:     cfg.ImportMaxDepth,
			MaxItems:     cfg.ImportMaxItems,
			MaxQuestions: cfg.ImportMaxQuestions,
		},
		Concurrency: cfg.ImportConcurrency,
	})

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Importer:       imp,
		Packs:          packs,
		Files:          files,
		Cache:          server.NewFileCache(cfg.FileCacheSize, cfg.FileCacheTTL),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, map[string]health.Checker{
			"sqlite": database.Checker{DB: db},
		}).Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
