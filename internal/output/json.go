package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/duckmesh/duckframe/internal/tabular"
)

// JSONFormatter outputs frames as JSON objects keyed by column name, either
// as one array or as JSON Lines.
type JSONFormatter struct {
	writer io.Writer
	lines  bool
}

func NewJSONFormatter(w io.Writer, lines bool) *JSONFormatter {
	return &JSONFormatter{writer: w, lines: lines}
}

func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

func (j *JSONFormatter) Format(frame *tabular.Frame) error {
	frame = frameOrEmpty(frame)
	out := bufio.NewWriter(j.writer)
	columns := frame.Columns()

	keys := make([][]byte, len(columns))
	for i, column := range columns {
		key, err := json.Marshal(column.Name())
		if err != nil {
			return fmt.Errorf("encode column name %q: %w", column.Name(), err)
		}
		keys[i] = key
	}

	if !j.lines {
		_ = out.WriteByte('[')
	}
	for row := 0; row < frame.NumRows(); row++ {
		if !j.lines && row > 0 {
			_ = out.WriteByte(',')
		}
		_ = out.WriteByte('{')
		for i, column := range columns {
			if i > 0 {
				_ = out.WriteByte(',')
			}
			_, _ = out.Write(keys[i])
			_ = out.WriteByte(':')
			value, err := CellJSON(column, row)
			if err != nil {
				return fmt.Errorf("encode row %d column %q: %w", row, column.Name(), err)
			}
			_, _ = out.Write(value)
		}
		_ = out.WriteByte('}')
		if j.lines {
			_ = out.WriteByte('\n')
		}
	}
	if !j.lines {
		_, _ = out.WriteString("]\n")
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// CellJSON encodes one cell. Dates use their calendar form, non-finite floats
// and native values that do not marshal fall back to their text rendering.
func CellJSON(column tabular.Column, row int) ([]byte, error) {
	if column.IsNull(row) {
		return []byte("null"), nil
	}
	switch column.Type() {
	case tabular.Date:
		return json.Marshal(column.Format(row))
	case tabular.Float:
		if f, ok := column.Value(row).(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return json.Marshal(column.Format(row))
		}
	case tabular.Native:
		encoded, err := json.Marshal(column.Value(row))
		if err != nil {
			return json.Marshal(column.Format(row))
		}
		return encoded, nil
	}
	return json.Marshal(column.Value(row))
}
