package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/vantage-suite/vantage-suite/internal/app"
	"github.com/vantage-suite/vantage-suite/internal/platform/cache"
	"github.com/vantage-suite/vantage-suite/internal/platform/db"
	"github.com/vantage-suite/vantage-suite/internal/rbac"
	"github.com/vantage-suite/vantage-suite/internal/registry"
	"github.com/vantage-suite/vantage-suite/internal/roles"
	"github.com/vantage-suite/vantage-suite/internal/seed"
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

	catalog, err := registry.BuiltinCatalog()
	if err != nil {
		logger.Error("parse catalog", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, decision invalidation degraded until it recovers", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	permStore := registry.NewStore(dbpool)
	registryView := registry.New(permStore)
	roleRepo := roles.NewRepository(dbpool)
	decisionCache := rbac.NewDecisionCache(redisClient, cfg.DecisionCacheTTL)
	seeder := seed.New(catalog, permStore, roleRepo, registryView, decisionCache, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:  asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:     logger,
		Reconciler: seeder,
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("queue", jobs.QueueDefault))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker", slog.Any("error", err))
		os.Exit(1)
	}
}
