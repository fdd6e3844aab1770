package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Corner-venturo/venturo-sub001/internal/app"
	"github.com/Corner-venturo/venturo-sub001/internal/auth"
	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/grants"
	"github.com/Corner-venturo/venturo-sub001/internal/mode"
	"github.com/Corner-venturo/venturo-sub001/internal/observability"
	"github.com/Corner-venturo/venturo-sub001/internal/platform/cache"
	"github.com/Corner-venturo/venturo-sub001/internal/platform/db"
	"github.com/Corner-venturo/venturo-sub001/internal/shared"
	"github.com/Corner-venturo/venturo-sub001/internal/users"
	"github.com/Corner-venturo/venturo-sub001/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	grantsRepo := grants.NewRepository(dbpool, auditLogger)
	catalog, err := loadCatalog(ctx, grantsRepo, logger)
	if err != nil {
		logger.Error("load permission catalog", slog.Any("error", err))
		os.Exit(1)
	}

	evaluator := authz.NewEvaluator(catalog, logger)
	evaluator.OnDeny(func(key, reason string) {
		metrics.RecordDenial(reason)
	})
	guard := authz.Middleware{Evaluator: evaluator, Logger: logger}
	modes := mode.NewController(evaluator)

	grantsService := grants.NewService(grantsRepo, evaluator, auditLogger, logger)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	grantsService.SetEnqueuer(jobsClient)
	grantsService.SetMetrics(metrics)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, evaluator, modes)
	identityLoader := auth.NewIdentityLoader(grantsService, logger)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, guard)

	grantsHandler := grants.NewHandler(logger, grantsService, guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		IdentityLoader: identityLoader,
		AuthHandler:    authHandler,
		UsersHandler:   usersHandler,
		GrantsHandler:  grantsHandler,
		JobsHandler:    jobsHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// loadCatalog prefers the definitions stored in postgres and falls back
// to the built-in set when the table is empty, so a fresh database boots
// before the seed script runs.
func loadCatalog(ctx context.Context, repo *grants.PGRepository, logger *slog.Logger) (*authz.Catalog, error) {
	defs, err := repo.FetchDefinitions(ctx)
	if err != nil {
		logger.Warn("fetch permission definitions", slog.Any("error", err))
		defs = nil
	}
	if len(defs) == 0 {
		logger.Info("permission definitions table empty, using built-in catalog")
		defs = authz.DefaultDefinitions()
	}
	return authz.NewCatalog(defs)
}
