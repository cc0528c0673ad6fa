// Package output renders query results for the command line.
//
// Supported formats:
//   - table: aligned text table
//   - csv: comma-separated values with a header row
//   - json: one array of objects
//   - jsonl: one object per line
//   - parquet: a single Parquet file
//
// Objects keep the result's column order.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/duckmesh/duckframe/internal/tabular"
)

const (
	FormatTable   = "table"
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
)

// Formatter writes a frame in one output format.
type Formatter interface {
	Format(frame *tabular.Frame) error
	SetOutput(w io.Writer)
}

// New returns the formatter registered for name.
func New(name string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormatTable:
		return NewTableFormatter(w), nil
	case FormatCSV:
		return NewCSVFormatter(w), nil
	case FormatJSON:
		return NewJSONFormatter(w, false), nil
	case FormatJSONL:
		return NewJSONFormatter(w, true), nil
	case FormatParquet:
		return NewParquetFormatter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want table, csv, json, jsonl or parquet)", name)
	}
}

func frameOrEmpty(frame *tabular.Frame) *tabular.Frame {
	if frame == nil {
		return tabular.Empty()
	}
	return frame
}
