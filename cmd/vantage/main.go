package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vantage-suite/vantage-suite/internal/app"
	"github.com/vantage-suite/vantage-suite/internal/assignments"
	"github.com/vantage-suite/vantage-suite/internal/audit"
	"github.com/vantage-suite/vantage-suite/internal/observability"
	"github.com/vantage-suite/vantage-suite/internal/platform/cache"
	"github.com/vantage-suite/vantage-suite/internal/platform/db"
	"github.com/vantage-suite/vantage-suite/internal/rbac"
	"github.com/vantage-suite/vantage-suite/internal/registry"
	"github.com/vantage-suite/vantage-suite/internal/roles"
	"github.com/vantage-suite/vantage-suite/internal/seed"
	"github.com/vantage-suite/vantage-suite/internal/shared"
	"github.com/vantage-suite/vantage-suite/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.NewPool(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, decision cache disabled until it recovers", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	catalog, err := registry.BuiltinCatalog()
	if err != nil {
		logger.Error("parse catalog", slog.Any("error", err))
		os.Exit(1)
	}

	permStore := registry.NewStore(dbpool)
	registryView := registry.New(permStore)
	roleRepo := roles.NewRepository(dbpool)
	assignmentRepo := assignments.NewRepository(dbpool)
	auditLogger := shared.NewAuditLogger(dbpool)

	decisionCache := rbac.NewDecisionCache(redisClient, cfg.DecisionCacheTTL)

	seeder := seed.New(catalog, permStore, roleRepo, registryView, decisionCache, logger)
	if cfg.SeedOnStart {
		report, err := seeder.Run(ctx)
		if err != nil {
			logger.Error("seed catalog", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("catalog seeded",
			slog.Int("permissions_created", report.PermissionsCreated),
			slog.Int("roles_created", report.RolesCreated))
	} else if err := registryView.Reload(ctx); err != nil {
		logger.Error("load registry", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	decisions := rbac.NewService(assignmentRepo, roleRepo, registryView, decisionCache, logger)
	decisions.SetDecisionObserver(metrics.RecordDecision)
	guard := rbac.Middleware{Service: decisions, Logger: logger}

	roleService := roles.NewService(roleRepo, registryView, decisions, auditLogger, logger)
	assignmentService := assignments.NewService(assignmentRepo, roleRepo, registryView, decisions, auditLogger, logger)
	catalogService := registry.NewService(permStore, registryView, decisionCache)
	auditService := audit.NewService(audit.NewRepository(dbpool))

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Config:             cfg,
		Metrics:            metrics,
		RolesHandler:       roles.NewHandler(logger, roleService, guard),
		AssignmentsHandler: assignments.NewHandler(logger, assignmentService, guard),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, decisions, registryView, guard),
		CatalogHandler:     registry.NewHandler(logger, catalogService, jobsClient, guard),
		AuditHandler:       audit.NewHandler(logger, auditService, guard),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	}()

	logger.Info("authorization service listening", slog.String("addr", cfg.AppAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}
