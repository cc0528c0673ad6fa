package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/duckmesh/duckframe/internal/tabular"
)

// CSVFormatter outputs frames as CSV with a header row. NULL cells are empty.
type CSVFormatter struct {
	writer io.Writer
}

func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

func (c *CSVFormatter) Format(frame *tabular.Frame) error {
	frame = frameOrEmpty(frame)
	csvWriter := csv.NewWriter(c.writer)

	if frame.NumColumns() > 0 {
		if err := csvWriter.Write(frame.ColumnNames()); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}

	columns := frame.Columns()
	for row := 0; row < frame.NumRows(); row++ {
		record := make([]string, len(columns))
		for i, column := range columns {
			if column.IsNull(row) {
				continue
			}
			value := column.Format(row)
			if column.Type() == tabular.Text {
				value = sanitizeCell(value)
			}
			record[i] = value
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", row, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return nil
}

// sanitizeCell quotes text that spreadsheet applications would evaluate as a
// formula.
func sanitizeCell(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r', '\n', '|':
		return "'" + strings.ReplaceAll(value, "'", "''")
	}
	return value
}
