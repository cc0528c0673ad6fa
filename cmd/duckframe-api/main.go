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

	"github.com/duckmesh/duckframe/internal/api"
	"github.com/duckmesh/duckframe/internal/auth"
	"github.com/duckmesh/duckframe/internal/config"
	"github.com/duckmesh/duckframe/internal/nl2sql"
	"github.com/duckmesh/duckframe/internal/observability"
	duckdbengine "github.com/duckmesh/duckframe/internal/query/duckdb"
	"github.com/duckmesh/duckframe/internal/source"
)

func main() {
	cfg, err := config.LoadFromEnv("duckframe-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	fetcher, err := source.NewFetcherFromConfig(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize source fetcher", slog.Any("error", err))
		os.Exit(1)
	}
	queryEngine := duckdbengine.NewEngine(fetcher, logger)

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
			logger.Error("failed to initialize query translator", slog.Any("error", err))
			os.Exit(1)
		}
	}

	deps := api.Dependencies{
		Logger:            logger,
		QueryEngine:       queryEngine,
		SchemaDescriber:   queryEngine,
		QueryTranslator:   translator,
		QueryTimeout:      cfg.Query.Timeout,
		SchemaSampleRows:  cfg.Query.SchemaSampleRows,
		Readiness:         api.CombineReadinessChecks(duckdbengine.Ping),
		DependencyTimeout: time.Second,
		Defaults: api.SourceDefaults{
			Location:    cfg.Query.DefaultSource,
			ContentType: cfg.Query.DefaultContentType,
			Relation:    cfg.Query.DefaultRelation,
		},
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
