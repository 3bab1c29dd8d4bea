// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api serves the Inkshelf chapter ingestion API.
//
// Startup order: logger, configuration, PostgreSQL, Redis, blob store,
// migrations, token verifier, handlers, then the HTTP server until SIGINT
// or SIGTERM. All wiring is explicit constructor injection.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/inkshelf/internal/api"
	"github.com/taibuivan/inkshelf/internal/blob"
	"github.com/taibuivan/inkshelf/internal/core/chapter"
	"github.com/taibuivan/inkshelf/internal/platform/config"
	"github.com/taibuivan/inkshelf/internal/platform/constants"
	"github.com/taibuivan/inkshelf/internal/platform/migration"
	pgstore "github.com/taibuivan/inkshelf/internal/platform/postgres"
	redisstore "github.com/taibuivan/inkshelf/internal/platform/redis"
	"github.com/taibuivan/inkshelf/internal/platform/sec"
	"github.com/taibuivan/inkshelf/internal/platform/txn"
)

// storageProbePath is looked up by the readiness check; it never exists.
const storageProbePath = ".ready-probe"

// startupTimeout bounds connecting to every dependency.
const startupTimeout = 30 * time.Second

func main() {
	level := new(slog.LevelVar)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	if err := run(log, level); err != nil {
		log.Error("startup_failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("server_stopped")
}

func run(log *slog.Logger, level *slog.LevelVar) error {
	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Debug {
		level.Set(slog.LevelDebug)
	}
	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("blob_backend", cfg.BlobBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startupCtx, cancelStartup := context.WithTimeout(ctx, startupTimeout)
	defer cancelStartup()

	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("redis_close_failed", slog.Any("error", err))
		}
	}()

	blobs, err := blob.Open(startupCtx, cfg, log)
	if err != nil {
		return err
	}

	if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
		return err
	}

	verifier, err := sec.LoadVerifier(cfg.JWTPubKeyPath, constants.AuthIssuer)
	if err != nil {
		return err
	}

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
		CheckCache:    func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) },
		CheckStorage: func(ctx context.Context) error {
			_, err := blobs.Exists(ctx, storageProbePath)
			return err
		},
	}, log)

	chapterService := chapter.NewService(
		chapter.NewRepository(pool),
		chapter.ForTx,
		txn.NewCoordinator(pool, blobs),
		chapter.NewRedisPublisher(rdb),
		log,
	)
	uploader := chapter.NewUploader(blobs, chapter.UploadLimits{
		MaxFileBytes:    cfg.UploadMaxFileBytes,
		MaxFiles:        cfg.UploadMaxPages,
		MaxRequestBytes: cfg.UploadMaxRequestBytes,
	})

	server := api.NewServer(cfg, log, verifier, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Chapter:   chapter.NewHandler(chapterService, uploader),
	})

	return server.Run(ctx)
}
