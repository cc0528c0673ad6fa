package duckdb

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/duckmesh/duckframe/internal/apperrors"
	"github.com/duckmesh/duckframe/internal/query"
	"github.com/duckmesh/duckframe/internal/source"
	"github.com/duckmesh/duckframe/internal/tabular"
)

const planetsCSV = "disc_year,name\n2001,alpha\n1999,beta\n2001,gamma\n2010,delta\n"

func TestExecuteGroupsCSVSourceByYear(t *testing.T) {
	path := writeSource(t, "planets.csv", planetsCSV)
	engine := NewEngine(localFetcher(), nil)

	result, err := engine.Execute(context.Background(), query.Request{
		Source: mustDescriptor(t, path, "csv", "source"),
		SQL:    "SELECT disc_year, count(*) AS Count FROM source GROUP BY disc_year ORDER BY disc_year",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	frame := result.Frame
	if got := frame.ColumnNames(); len(got) != 2 || got[0] != "disc_year" || got[1] != "Count" {
		t.Fatalf("ColumnNames() = %v", got)
	}
	if frame.NumRows() != 3 {
		t.Fatalf("NumRows() = %d, want 3", frame.NumRows())
	}

	years, ok := frame.ColumnAt(0).(*tabular.IntegerColumn)
	if !ok {
		t.Fatalf("disc_year column = %T, want *tabular.IntegerColumn", frame.ColumnAt(0))
	}
	counts, ok := frame.ColumnAt(1).(*tabular.IntegerColumn)
	if !ok {
		t.Fatalf("Count column = %T, want *tabular.IntegerColumn", frame.ColumnAt(1))
	}
	wantYears := []int64{1999, 2001, 2010}
	wantCounts := []int64{1, 2, 1}
	for i := range wantYears {
		if got := years.Values()[i]; got != wantYears[i] {
			t.Fatalf("disc_year[%d] = %d, want %d", i, got, wantYears[i])
		}
		if got := counts.Values()[i]; got != wantCounts[i] {
			t.Fatalf("Count[%d] = %d, want %d", i, got, wantCounts[i])
		}
	}
	if result.StagedBytes != int64(len(planetsCSV)) {
		t.Fatalf("StagedBytes = %d, want %d", result.StagedBytes, len(planetsCSV))
	}
}

func TestExecuteSelectStarPreservesSchemaAndRowCount(t *testing.T) {
	path := writeSource(t, "planets.csv", planetsCSV)
	engine := NewEngine(localFetcher(), nil)

	result, err := engine.Execute(context.Background(), query.Request{
		Source: mustDescriptor(t, path, "", ""),
		SQL:    "SELECT * FROM source",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	frame := result.Frame
	if got := frame.ColumnNames(); len(got) != 2 || got[0] != "disc_year" || got[1] != "name" {
		t.Fatalf("ColumnNames() = %v", got)
	}
	if frame.NumRows() != 4 {
		t.Fatalf("NumRows() = %d, want 4", frame.NumRows())
	}
	if frame.ColumnAt(1).Type() != tabular.Text {
		t.Fatalf("name type = %s, want text", frame.ColumnAt(1).Type())
	}
	if got := frame.ColumnAt(1).Format(0); got != "alpha" {
		t.Fatalf("name[0] = %q", got)
	}
}

func TestExecuteUnknownColumnFailsWithQueryError(t *testing.T) {
	path := writeSource(t, "planets.csv", planetsCSV)
	engine := NewEngine(localFetcher(), nil)

	result, err := engine.Execute(context.Background(), query.Request{
		Source: mustDescriptor(t, path, "csv", "source"),
		SQL:    "SELECT no_such_column FROM source",
	})
	if !errors.Is(err, apperrors.ErrQuery) {
		t.Fatalf("Execute() error = %v, want ErrQuery", err)
	}
	if result.Frame != nil {
		t.Fatalf("expected no frame on failure, got %d rows", result.Frame.NumRows())
	}
}

func TestOpenSessionMalformedJSONFailsWithIngestionError(t *testing.T) {
	path := writeSource(t, "broken.json", `{"disc_year": 2001, "name": `)

	_, err := OpenSession(context.Background(), localFetcher(), mustDescriptor(t, path, "json", "source"), nil)
	if !errors.Is(err, apperrors.ErrIngestion) {
		t.Fatalf("OpenSession() error = %v, want ErrIngestion", err)
	}
}

func TestOpenSessionUnknownTypeFallsBackToCSV(t *testing.T) {
	path := writeSource(t, "planets.data", `[{"a": 1, "b": 2}, {"a": 3, "b": 4}]`)
	descriptor := mustDescriptor(t, path, "xml", "source")
	if descriptor.IngestFunction() != source.ReadCSV {
		t.Fatalf("IngestFunction() = %q, want %q", descriptor.IngestFunction(), source.ReadCSV)
	}

	session, err := OpenSession(context.Background(), localFetcher(), descriptor, nil)
	if err != nil {
		if !errors.Is(err, apperrors.ErrIngestion) {
			t.Fatalf("OpenSession() error = %v, want ErrIngestion", err)
		}
		return
	}
	defer func() { _ = session.Close() }()

	frame, err := session.Run(context.Background(), "SELECT * FROM source")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, ok := frame.Column("a"); ok {
		t.Fatalf("csv ingestion should not recover JSON keys, got columns %v", frame.ColumnNames())
	}
}

type parquetRow struct {
	ID    int64   `parquet:"id"`
	Name  string  `parquet:"name"`
	Score float64 `parquet:"score"`
}

func TestExecuteReadsParquetSource(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRow](buf)
	if _, err := writer.Write([]parquetRow{{ID: 1, Name: "a", Score: 0.5}, {ID: 2, Name: "b", Score: 1.25}}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	path := writeSource(t, "scores.parquet", buf.String())

	engine := NewEngine(localFetcher(), nil)
	result, err := engine.Execute(context.Background(), query.Request{
		Source: mustDescriptor(t, path, "", "scores"),
		SQL:    "SELECT id, name, score FROM scores ORDER BY id",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	frame := result.Frame
	if frame.NumRows() != 2 {
		t.Fatalf("NumRows() = %d", frame.NumRows())
	}
	wantTypes := []tabular.Type{tabular.Integer, tabular.Text, tabular.Float}
	for i, want := range wantTypes {
		if got := frame.ColumnAt(i).Type(); got != want {
			t.Fatalf("column %d type = %s, want %s", i, got, want)
		}
	}
	if got := frame.ColumnAt(2).Value(1); got != 1.25 {
		t.Fatalf("score[1] = %#v", got)
	}
}

func TestRunConvertsEngineTypes(t *testing.T) {
	session := openPlanets(t)

	frame, err := session.Run(context.Background(), `SELECT
		CAST(12345.678 AS DECIMAL(18,3)) AS amount,
		DATE '2024-03-01' AS discovered,
		'6ba7b810-9dad-11d1-80b4-00c04fd430c8'::UUID AS id,
		CAST(42 AS UBIGINT) AS big,
		CAST(7 AS TINYINT) AS tiny,
		CAST(1.5 AS FLOAT) AS ratio,
		NULL::INTEGER AS missing,
		true AS flag`)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	amount := frame.ColumnAt(0)
	if amount.Type() != tabular.Float || amount.Value(0) != 12345.678 {
		t.Fatalf("amount = %s %#v", amount.Type(), amount.Value(0))
	}
	discovered := frame.ColumnAt(1)
	if discovered.Type() != tabular.Date || discovered.Format(0) != "2024-03-01" {
		t.Fatalf("discovered = %s %q", discovered.Type(), discovered.Format(0))
	}
	id := frame.ColumnAt(2)
	if id.Type() != tabular.Text || id.Format(0) != "6ba7b810-9dad-11d1-80b4-00c04fd430c8" {
		t.Fatalf("id = %s %q", id.Type(), id.Format(0))
	}
	if big := frame.ColumnAt(3); big.Type() != tabular.Integer || big.Value(0) != int64(42) {
		t.Fatalf("big = %s %#v", big.Type(), big.Value(0))
	}
	if tiny := frame.ColumnAt(4); tiny.Type() != tabular.Integer || tiny.Value(0) != int64(7) {
		t.Fatalf("tiny = %s %#v", tiny.Type(), tiny.Value(0))
	}
	if ratio := frame.ColumnAt(5); ratio.Type() != tabular.Float || ratio.Value(0) != 1.5 {
		t.Fatalf("ratio = %s %#v", ratio.Type(), ratio.Value(0))
	}
	missing := frame.ColumnAt(6)
	if missing.Type() != tabular.Integer || !missing.IsNull(0) || missing.Value(0) != nil {
		t.Fatalf("missing = %s null=%v %#v", missing.Type(), missing.IsNull(0), missing.Value(0))
	}
	flag, ok := frame.ColumnAt(7).(*tabular.NativeColumn)
	if !ok {
		t.Fatalf("flag column = %T, want *tabular.NativeColumn", frame.ColumnAt(7))
	}
	if flag.EngineType() != "BOOLEAN" || flag.Format(0) != "true" {
		t.Fatalf("flag = %s %q", flag.EngineType(), flag.Format(0))
	}
}

func TestRunUnsignedOverflowFailsWithConversionError(t *testing.T) {
	session := openPlanets(t)

	_, err := session.Run(context.Background(), "SELECT CAST(18446744073709551615 AS UBIGINT) AS u")
	if !errors.Is(err, apperrors.ErrConversion) {
		t.Fatalf("Run() error = %v, want ErrConversion", err)
	}
}

func TestRunEmptyResultKeepsColumns(t *testing.T) {
	session := openPlanets(t)

	frame, err := session.Run(context.Background(), "SELECT disc_year, name FROM source WHERE disc_year > 3000")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if frame.NumRows() != 0 || frame.NumColumns() != 2 {
		t.Fatalf("frame = %d rows x %d columns", frame.NumRows(), frame.NumColumns())
	}
}

func TestSequentialSessionsDoNotShareState(t *testing.T) {
	first := writeSource(t, "first.csv", "v\n1\n2\n")
	second := writeSource(t, "second.csv", "v\n10\n20\n30\n")
	engine := NewEngine(localFetcher(), nil)

	for _, tc := range []struct {
		path string
		want int64
	}{
		{path: first, want: 3},
		{path: second, want: 60},
		{path: first, want: 3},
	} {
		result, err := engine.Execute(context.Background(), query.Request{
			Source: mustDescriptor(t, tc.path, "csv", "source"),
			SQL:    "SELECT sum(v)::BIGINT AS total FROM source",
		})
		if err != nil {
			t.Fatalf("Execute(%s) error = %v", tc.path, err)
		}
		if got := result.Frame.ColumnAt(0).Value(0); got != tc.want {
			t.Fatalf("Execute(%s) total = %#v, want %d", tc.path, got, tc.want)
		}
	}
}

func TestDistinctSessionsRunConcurrently(t *testing.T) {
	path := writeSource(t, "planets.csv", planetsCSV)
	engine := NewEngine(localFetcher(), nil)
	descriptor := mustDescriptor(t, path, "csv", "source")

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := engine.Execute(context.Background(), query.Request{
				Source: descriptor,
				SQL:    "SELECT count(*) AS n FROM source",
			})
			if err != nil {
				errs <- err
				return
			}
			if got := result.Frame.ColumnAt(0).Value(0); got != int64(4) {
				errs <- errors.New("unexpected count")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Execute() error = %v", err)
	}
}

func TestRunKeepsDuplicateOutputColumns(t *testing.T) {
	session := openPlanets(t)

	frame, err := session.Run(context.Background(), "SELECT 1 AS a, 2 AS a")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := frame.ColumnNames(); len(got) != 2 || got[0] != "a" || got[1] != "a_1" {
		t.Fatalf("ColumnNames() = %v, want [a a_1]", got)
	}
	if got := frame.Row(0); got[0] != int64(1) || got[1] != int64(2) {
		t.Fatalf("Row(0) = %v", got)
	}

	frame, err = session.Run(context.Background(),
		"SELECT a.name, b.name FROM source a JOIN source b ON a.disc_year = b.disc_year ORDER BY a.name, b.name")
	if err != nil {
		t.Fatalf("Run() self-join error = %v", err)
	}
	if got := frame.ColumnNames(); len(got) != 2 || got[0] != "name" || got[1] != "name_1" {
		t.Fatalf("ColumnNames() = %v, want [name name_1]", got)
	}
	if frame.NumRows() != 6 {
		t.Fatalf("NumRows() = %d, want 6", frame.NumRows())
	}
	if got := frame.Row(0); got[0] != "alpha" || got[1] != "alpha" {
		t.Fatalf("Row(0) = %v", got)
	}
}

func TestDescribeReportsRelationColumns(t *testing.T) {
	session := openPlanets(t)

	columns, err := session.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if len(columns) != 2 {
		t.Fatalf("Describe() = %+v", columns)
	}
	if columns[0].Name != "disc_year" || columns[0].Type != tabular.Integer {
		t.Fatalf("columns[0] = %+v", columns[0])
	}
	if columns[1].Name != "name" || columns[1].EngineType != "VARCHAR" || columns[1].Type != tabular.Text {
		t.Fatalf("columns[1] = %+v", columns[1])
	}
}

func TestEngineDescribeIncludesSample(t *testing.T) {
	path := writeSource(t, "planets.csv", planetsCSV)
	engine := NewEngine(localFetcher(), nil)

	schema, err := engine.Describe(context.Background(), mustDescriptor(t, path, "csv", "source"), 2)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if schema.Relation != "source" || len(schema.Columns) != 2 {
		t.Fatalf("schema = %+v", schema)
	}
	if schema.Sample == nil || schema.Sample.NumRows() != 2 {
		t.Fatalf("sample = %+v", schema.Sample)
	}
}

func TestSessionCloseIsIdempotentAndBlocksRun(t *testing.T) {
	path := writeSource(t, "planets.csv", planetsCSV)
	session, err := OpenSession(context.Background(), localFetcher(), mustDescriptor(t, path, "csv", "source"), nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, err := session.Run(context.Background(), "SELECT 1"); !errors.Is(err, apperrors.ErrConnection) {
		t.Fatalf("Run() after Close error = %v, want ErrConnection", err)
	}
}

func TestOpenSessionPropagatesFetchErrors(t *testing.T) {
	fetcher := &stubFetcher{err: apperrors.InvalidSource("parse source", "unsupported scheme")}
	_, err := OpenSession(context.Background(), fetcher, source.Descriptor{Location: "ftp://x/y", Relation: "source"}, nil)
	if !errors.Is(err, apperrors.ErrInvalidSource) {
		t.Fatalf("OpenSession() error = %v, want ErrInvalidSource", err)
	}

	fetcher = &stubFetcher{err: apperrors.Fetch("download source", errors.New("connection refused"))}
	_, err = OpenSession(context.Background(), fetcher, source.Descriptor{Location: "https://x/y.csv", Relation: "source"}, nil)
	if !errors.Is(err, apperrors.ErrFetch) {
		t.Fatalf("OpenSession() error = %v, want ErrFetch", err)
	}
}

func TestOpenSessionRemovesDownloadedStagingFile(t *testing.T) {
	dir := t.TempDir()
	staged := filepath.Join(dir, "staged.csv")
	if err := os.WriteFile(staged, []byte(planetsCSV), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	fetcher := &stubFetcher{staged: source.NewStaged(staged, int64(len(planetsCSV)), "https", true)}

	session, err := OpenSession(context.Background(), fetcher, source.Descriptor{Location: "https://example.com/p.csv", Relation: "source"}, nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	defer func() { _ = session.Close() }()

	if _, err := os.Stat(staged); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("staged file should be removed after ingestion, stat err = %v", err)
	}
	frame, err := session.Run(context.Background(), "SELECT count(*) AS n FROM source")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := frame.ColumnAt(0).Value(0); got != int64(4) {
		t.Fatalf("count = %#v", got)
	}
}

func TestExecuteRequiresSQL(t *testing.T) {
	engine := NewEngine(&stubFetcher{err: errors.New("fetch must not be called")}, nil)
	_, err := engine.Execute(context.Background(), query.Request{SQL: "  "})
	if !errors.Is(err, apperrors.ErrQuery) {
		t.Fatalf("Execute() error = %v, want ErrQuery", err)
	}
}

func TestOpenSessionHonoursCancelledContext(t *testing.T) {
	path := writeSource(t, "planets.csv", planetsCSV)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := OpenSession(ctx, localFetcher(), mustDescriptor(t, path, "csv", "source"), nil)
	if err == nil {
		t.Fatal("OpenSession() expected error for expired context")
	}
}

type stubFetcher struct {
	staged *source.Staged
	err    error
}

func (s *stubFetcher) Fetch(context.Context, string) (*source.Staged, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.staged, nil
}

func openPlanets(t *testing.T) *Session {
	t.Helper()
	path := writeSource(t, "planets.csv", planetsCSV)
	session, err := OpenSession(context.Background(), localFetcher(), mustDescriptor(t, path, "csv", "source"), nil)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func localFetcher() *source.Fetcher {
	return source.NewFetcher(source.Config{}, nil, nil)
}

func mustDescriptor(t *testing.T, location, declaredType, relation string) source.Descriptor {
	t.Helper()
	descriptor, err := source.NewDescriptor(location, declaredType, relation)
	if err != nil {
		t.Fatalf("NewDescriptor() error = %v", err)
	}
	return descriptor
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestPing(t *testing.T) {
	if err := Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
