package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/duckmesh/duckframe/internal/cli/duckframe"
	"github.com/duckmesh/duckframe/internal/config"
	"github.com/duckmesh/duckframe/internal/observability"
	duckdbengine "github.com/duckmesh/duckframe/internal/query/duckdb"
	"github.com/duckmesh/duckframe/internal/source"
)

func main() {
	cfg, err := config.LoadFromEnv("duckframe")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	if _, ok := os.LookupEnv("DUCKFRAME_LOG_LEVEL"); !ok {
		cfg.Observability.LogLevel = slog.LevelWarn
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	fetcher, err := source.NewFetcherFromConfig(cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "initialize source fetcher: %v\n", err)
		os.Exit(1)
	}
	engine := duckdbengine.NewEngine(fetcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := duckframe.Run(ctx, os.Args[1:], duckframe.Options{
		Source:      cfg.Query.DefaultSource,
		ContentType: cfg.Query.DefaultContentType,
		Relation:    cfg.Query.DefaultRelation,
		Format:      strings.TrimSpace(os.Getenv("DUCKFRAME_OUTPUT_FORMAT")),
		APIBaseURL:  strings.TrimSpace(os.Getenv("DUCKFRAME_API_URL")),
		APIKey:      strings.TrimSpace(os.Getenv("DUCKFRAME_API_KEY")),
		Timeout:     cfg.Query.Timeout,
		Engine:      engine,
		Describer:   engine,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	})
	stop()
	os.Exit(code)
}
