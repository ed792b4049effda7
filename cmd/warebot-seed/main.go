package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warebot/warebot/internal/config"
	"github.com/warebot/warebot/internal/demo/seeder"
	"github.com/warebot/warebot/internal/warehouse"
)

func main() {
	cfg, err := config.LoadFromEnv("warebot-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	seedCfg, err := seeder.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load seed config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := warehouse.Open(ctx, cfg.Warehouse)
	if err != nil {
		logger.Error("failed to open warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	svc, err := seeder.New(db, logger)
	if err != nil {
		logger.Error("failed to initialize seeder", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info(
		"seeding warehouse",
		slog.String("driver", cfg.Warehouse.Driver),
		slog.Int("users", seedCfg.Users),
		slog.Int("months", seedCfg.Months),
		slog.Int64("seed", seedCfg.Seed),
	)

	dataset := seeder.Generate(seedCfg, time.Now().UTC())
	if err := svc.Seed(ctx, dataset); err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seeding complete")
}
