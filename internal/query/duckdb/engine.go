package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duckmesh/duckframe/internal/apperrors"
	"github.com/duckmesh/duckframe/internal/query"
	"github.com/duckmesh/duckframe/internal/source"
)

// Engine opens a fresh Session for every request and closes it before
// returning, so no state is shared between requests.
type Engine struct {
	Fetcher Fetcher
	Logger  *slog.Logger
}

func NewEngine(fetcher Fetcher, logger *slog.Logger) *Engine {
	return &Engine{Fetcher: fetcher, Logger: logger}
}

func (e *Engine) Open(ctx context.Context, descriptor source.Descriptor) (*Session, error) {
	return OpenSession(ctx, e.Fetcher, descriptor, e.Logger)
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if strings.TrimSpace(request.SQL) == "" {
		return query.Result{}, apperrors.Newf(apperrors.ErrQuery, "execute query", "sql is required")
	}

	start := time.Now()
	session, err := e.Open(ctx, request.Source)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = session.Close() }()

	frame, err := session.Run(ctx, request.SQL)
	if err != nil {
		return query.Result{}, err
	}
	return query.Result{
		Frame:       frame,
		Duration:    time.Since(start),
		StagedBytes: session.StagedBytes(),
	}, nil
}

// Describe loads the source and reports its schema with up to sampleRows
// leading rows.
func (e *Engine) Describe(ctx context.Context, descriptor source.Descriptor, sampleRows int) (query.Schema, error) {
	session, err := e.Open(ctx, descriptor)
	if err != nil {
		return query.Schema{}, err
	}
	defer func() { _ = session.Close() }()

	columns, err := session.Describe(ctx)
	if err != nil {
		return query.Schema{}, err
	}
	schema := query.Schema{Relation: descriptor.Relation, Columns: columns}
	if sampleRows > 0 {
		sample, err := session.Run(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(descriptor.Relation), sampleRows))
		if err != nil {
			return query.Schema{}, err
		}
		schema.Sample = sample
	}
	return schema, nil
}

// Ping opens a throwaway in-memory database and runs a trivial statement.
func Ping(ctx context.Context) error {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return apperrors.Connection("open duckdb", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		return apperrors.Connection("ping duckdb", err)
	}
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return apperrors.Connection("probe duckdb", err)
	}
	return nil
}
