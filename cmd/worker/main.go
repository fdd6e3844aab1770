package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Corner-venturo/venturo-sub001/internal/app"
	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/grants"
	"github.com/Corner-venturo/venturo-sub001/internal/observability"
	"github.com/Corner-venturo/venturo-sub001/internal/platform/cache"
	"github.com/Corner-venturo/venturo-sub001/internal/platform/db"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
	"github.com/Corner-venturo/venturo-sub001/jobs"
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
	auditLogger := shared.NewAuditLogger(pool)

	grantsRepo := grants.NewRepository(pool, auditLogger)
	defs, err := grantsRepo.FetchDefinitions(ctx)
	if err != nil || len(defs) == 0 {
		if err != nil {
			logger.Warn("fetch permission definitions", slog.Any("error", err))
		}
		defs = authz.DefaultDefinitions()
	}
	catalog, err := authz.NewCatalog(defs)
	if err != nil {
		logger.Error("build permission catalog", slog.Any("error", err))
		os.Exit(1)
	}

	scanner := jobs.NewIntegrityScanner(pool, catalog, logger, metrics)
	pruner := jobs.NewSessionPruner(pool, logger, metrics)

	scanTask, err := jobs.NewIntegrityScanTask(time.Now().UTC())
	if err != nil {
		logger.Error("build integrity scan task", slog.Any("error", err))
		os.Exit(1)
	}
	pruneTask, err := jobs.NewSessionPruneTask(time.Now().UTC())
	if err != nil {
		logger.Error("build session prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskGrantsIntegrityScan, Handler: scanner.Handle},
			{Type: jobs.TaskSessionPrune, Handler: pruner.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "@every 1h", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
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
