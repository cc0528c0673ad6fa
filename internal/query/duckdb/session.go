package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/duckmesh/duckframe/internal/apperrors"
	"github.com/duckmesh/duckframe/internal/observability"
	"github.com/duckmesh/duckframe/internal/query"
	"github.com/duckmesh/duckframe/internal/source"
	"github.com/duckmesh/duckframe/internal/tabular"
)

// Fetcher stages a source location on the local filesystem.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (*source.Staged, error)
}

var errSessionClosed = errors.New("session is closed")

// Session owns one in-memory DuckDB database, one connection on it and the
// relation created from its source. Queries on one session are serialized.
type Session struct {
	descriptor  source.Descriptor
	stagedBytes int64
	logger      *slog.Logger

	mu     sync.Mutex
	db     *sql.DB
	conn   *sql.Conn
	closed bool
}

// OpenSession stages the source, opens a fresh engine and materializes the
// source as descriptor.Relation. The source is fetched before the engine is
// opened so that invalid sources never allocate engine resources.
func OpenSession(ctx context.Context, fetcher Fetcher, descriptor source.Descriptor, logger *slog.Logger) (*Session, error) {
	if fetcher == nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidSource, "open session", "source fetcher is required")
	}
	if logger == nil {
		logger = observability.DiscardLogger()
	}

	staged, err := fetcher.Fetch(ctx, descriptor.Location)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := staged.Close(); closeErr != nil {
			logger.WarnContext(ctx, "remove staged source", slog.String("error", closeErr.Error()))
		}
	}()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, apperrors.Connection("open duckdb", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, apperrors.Connection("open duckdb connection", err)
	}

	session := &Session{
		descriptor:  descriptor,
		stagedBytes: staged.Size,
		logger:      logger,
		db:          db,
		conn:        conn,
	}

	start := time.Now()
	function := descriptor.IngestFunction()
	createSQL := fmt.Sprintf(`CREATE TABLE %s AS SELECT * FROM %s(%s)`,
		quoteIdent(descriptor.Relation), function, quoteString(staged.Path))
	if _, err := conn.ExecContext(ctx, createSQL); err != nil {
		_ = session.Close()
		return nil, apperrors.Ingestion(fmt.Sprintf("create relation %q with %s", descriptor.Relation, function), err)
	}
	observability.ObserveIngest(string(descriptor.ContentType), time.Since(start))
	logger.DebugContext(ctx, "relation created",
		slog.String("relation", descriptor.Relation),
		slog.String("function", function),
		slog.Int64("staged_bytes", staged.Size),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return session, nil
}

func (s *Session) Relation() string { return s.descriptor.Relation }

func (s *Session) StagedBytes() int64 { return s.stagedBytes }

// Run executes sqlText verbatim and converts the full result set.
func (s *Session) Run(ctx context.Context, sqlText string) (*tabular.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, apperrors.Connection("run query", errSessionClosed)
	}

	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, apperrors.Query("execute query", err)
	}
	defer func() { _ = rows.Close() }()

	frame, err := convertRows(rows)
	if err != nil {
		return nil, err
	}
	observability.ObserveQuery(time.Since(start), frame.NumRows())
	s.logger.DebugContext(ctx, "query executed",
		slog.String("relation", s.descriptor.Relation),
		slog.Int("columns", frame.NumColumns()),
		slog.Int("rows", frame.NumRows()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return frame, nil
}

// Describe reports the relation's columns and their engine logical types.
func (s *Session) Describe(ctx context.Context) ([]query.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, apperrors.Connection("describe relation", errSessionClosed)
	}

	rows, err := s.conn.QueryContext(ctx, `DESCRIBE `+quoteIdent(s.descriptor.Relation))
	if err != nil {
		return nil, apperrors.Query("describe relation", err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, apperrors.Query("describe relation", err)
	}
	nameIdx, typeIdx := -1, -1
	for i, name := range names {
		switch name {
		case "column_name":
			nameIdx = i
		case "column_type":
			typeIdx = i
		}
	}
	if nameIdx < 0 || typeIdx < 0 {
		return nil, apperrors.Newf(apperrors.ErrQuery, "describe relation", "unexpected describe columns %v", names)
	}

	columns := make([]query.Column, 0)
	for rows.Next() {
		values := make([]any, len(names))
		targets := make([]any, len(names))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, apperrors.Query("scan describe row", err)
		}
		name := fmt.Sprint(normalizeNative(values[nameIdx]))
		engineType := fmt.Sprint(normalizeNative(values[typeIdx]))
		columns = append(columns, query.Column{
			Name:       name,
			EngineType: engineType,
			Type:       familyOf(engineType).Type(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Query("describe relation", err)
	}
	return columns, nil
}

// Close releases the connection and then the database. It is safe to call
// more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close duckdb connection: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close duckdb: %w", err))
		}
	}
	return errors.Join(errs...)
}

func convertRows(rows *sql.Rows) (*tabular.Frame, error) {
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, apperrors.Query("query columns", err)
	}

	raw := make([][]any, len(columnTypes))
	for rows.Next() {
		values := make([]any, len(columnTypes))
		targets := make([]any, len(columnTypes))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, apperrors.Conversion("scan row", err)
		}
		for i, value := range values {
			raw[i] = append(raw[i], value)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Query("iterate rows", err)
	}

	names := make([]string, len(columnTypes))
	for i, columnType := range columnTypes {
		names[i] = columnType.Name()
	}
	names = uniqueColumnNames(names)

	columns := make([]tabular.Column, 0, len(columnTypes))
	for i, columnType := range columnTypes {
		values := raw[i]
		if values == nil {
			values = []any{}
		}
		column, err := convertColumn(names[i], columnType.DatabaseTypeName(), values)
		if err != nil {
			return nil, err
		}
		columns = append(columns, column)
	}

	frame, err := tabular.NewFrame(columns...)
	if err != nil {
		return nil, apperrors.Conversion("build frame", err)
	}
	return frame, nil
}

// uniqueColumnNames keeps the first occurrence of each name and suffixes
// later repeats with _1, _2, ... skipping names already taken, which is how
// DuckDB names the columns of CREATE TABLE AS over the same select list.
func uniqueColumnNames(names []string) []string {
	taken := make(map[string]bool, len(names))
	for _, name := range names {
		taken[name] = true
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		if !seen[name] {
			seen[name] = true
			out[i] = name
			continue
		}
		for n := 1; ; n++ {
			candidate := fmt.Sprintf("%s_%d", name, n)
			if !taken[candidate] {
				taken[candidate] = true
				out[i] = candidate
				break
			}
		}
	}
	return out
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
