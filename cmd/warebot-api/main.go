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

	"github.com/warebot/warebot/internal/answer"
	"github.com/warebot/warebot/internal/api"
	"github.com/warebot/warebot/internal/ask"
	"github.com/warebot/warebot/internal/auth"
	"github.com/warebot/warebot/internal/config"
	"github.com/warebot/warebot/internal/nl2sql"
	"github.com/warebot/warebot/internal/observability"
	"github.com/warebot/warebot/internal/warehouse"
)

func main() {
	cfg, err := config.LoadFromEnv("warebot-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	db, err := warehouse.Open(context.Background(), cfg.Warehouse)
	if err != nil {
		logger.Error("failed to open warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	executor := warehouse.NewExecutor(db, cfg.Query.RowCap, cfg.Query.Timeout, logger)

	var translator nl2sql.Translator
	if cfg.AI.TranslateEnabled {
		translator, err = nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize question translator", slog.Any("error", err))
			os.Exit(1)
		}
	}

	assembler := answer.NewAssembler(cfg.Answer.MaxReplyChars, cfg.Answer.MaxRows)
	askService := ask.New(executor, translator, assembler, cfg.Answer.MaxRows, logger)

	deps := api.Dependencies{
		Logger:            logger,
		Ask:               askService,
		Executor:          executor,
		RowLimit:          cfg.Answer.MaxRows,
		Readiness:         api.CheckWarehouse(executor),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
