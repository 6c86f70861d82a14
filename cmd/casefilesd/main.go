// Command casefilesd serves the case attachment API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/casefiles/internal/api"
	"github.com/dmitrymomot/casefiles/internal/config"
	"github.com/dmitrymomot/casefiles/pkg/attachment"
	"github.com/dmitrymomot/casefiles/pkg/attachment/postgres"
	"github.com/dmitrymomot/casefiles/pkg/cache"
	"github.com/dmitrymomot/casefiles/pkg/db"
	"github.com/dmitrymomot/casefiles/pkg/health"
	"github.com/dmitrymomot/casefiles/pkg/logger"
	"github.com/dmitrymomot/casefiles/pkg/storage"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.NewWithSentry(cfg.Sentry)

	if err := run(cfg, log); err != nil {
		log.Error("service exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, postgres.Migrations, log); err != nil {
		return err
	}

	blobs, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}

	checks := health.Checks{
		"postgres": db.Healthcheck(pool),
		"storage":  storage.Healthcheck(blobs),
	}

	opts := []attachment.Option{attachment.WithLogger(log)}
	if cfg.RedisURL != "" {
		redisClient, err := cache.Open(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()

		opts = append(opts, attachment.WithURLCache(
			cache.NewRedis[string](redisClient, "download-url"),
		))
		checks["redis"] = cache.Healthcheck(redisClient)
	}

	svc, err := attachment.New(
		blobs,
		postgres.NewRepository(pool),
		api.Identity{},
		attachment.Config{
			MaxPerCase:        cfg.Limits.MaxPerCase,
			MaxFileBytes:      cfg.Limits.MaxFileBytes,
			AllowedExtensions: cfg.Limits.AllowedExtensions,
			SignedURLTTL:      cfg.Limits.SignedURLTTL,
		},
		opts...,
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.NewRouter(svc, checks, log),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", slog.String("address", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info("shutdown completed")
	return nil
}
