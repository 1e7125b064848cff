package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/veranda-erp/veranda-erp/internal/app"
	"github.com/veranda-erp/veranda-erp/internal/catalog"
	jobmetrics "github.com/veranda-erp/veranda-erp/internal/jobs"
	"github.com/veranda-erp/veranda-erp/internal/observability"
	"github.com/veranda-erp/veranda-erp/internal/platform/cache"
	"github.com/veranda-erp/veranda-erp/internal/platform/db"
	"github.com/veranda-erp/veranda-erp/internal/posimport"
	"github.com/veranda-erp/veranda-erp/internal/shared"
	"github.com/veranda-erp/veranda-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)

	importRepo := posimport.NewRepository(pool, cfg.ImportBatchSize)
	importLock := shared.NewImportLock(redisClient, cfg.ImportLockTTL)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	pipeline := posimport.NewPipeline(importRepo, catalogService, logger)

	importService := posimport.NewService(importRepo, pipeline, importLock, idempotencyStore, nil, metrics, logger, posimport.ServiceConfig{
		DefaultRolloverHour: cfg.POSRolloverHour,
		UploadDir:           cfg.ImportUploadDir,
	})
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	importJob := jobs.NewPOSImportJob(importService, logger, jobMetrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, logger, jobMetrics)

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(cfg.IdempotencyRetentionHours)
	if err != nil {
		logger.Error("init cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPOSImport, Handler: importJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: cleanupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
