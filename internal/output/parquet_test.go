package output

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
)

func TestParquetFormatterRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewParquetFormatter(buf).Format(sampleFrame(t)); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	reader := parquet.NewReader(bytes.NewReader(buf.Bytes()))
	defer reader.Close()
	if reader.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", reader.NumRows())
	}

	rows := make([]parquet.Row, 2)
	n, err := reader.ReadRows(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("ReadRows() = %d rows, want 2", n)
	}

	schema := reader.Schema()
	leaf := func(name string) int {
		t.Helper()
		column, ok := schema.Lookup(name)
		if !ok {
			t.Fatalf("column %q missing from schema", name)
		}
		return column.ColumnIndex
	}

	if got := rows[0][leaf("disc_year")].Int64(); got != 1999 {
		t.Fatalf("disc_year = %d, want 1999", got)
	}
	if got := string(rows[1][leaf("name")].ByteArray()); got != "=cmd" {
		t.Fatalf("name = %q, want =cmd", got)
	}
	if got := rows[0][leaf("mass")].Double(); got != 1.5 {
		t.Fatalf("mass = %v, want 1.5", got)
	}
	if !rows[1][leaf("mass")].IsNull() {
		t.Fatal("expected NULL mass in second row")
	}
	if got := rows[0][leaf("found")].Int32(); got != daysSinceEpoch(mustDate(t, "1999-05-01")) {
		t.Fatalf("found = %d days", got)
	}
}

func TestDaysSinceEpoch(t *testing.T) {
	if got := daysSinceEpoch(mustDate(t, "1970-01-02")); got != 1 {
		t.Fatalf("daysSinceEpoch() = %d, want 1", got)
	}
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		t.Fatalf("time.Parse(%q) error = %v", value, err)
	}
	return parsed
}
