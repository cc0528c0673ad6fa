package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/duckmesh/duckframe/internal/tabular"
)

const nullText = "NULL"

// TableFormatter outputs frames as an aligned text table followed by a row
// count.
type TableFormatter struct {
	writer io.Writer
}

func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

func (t *TableFormatter) SetOutput(w io.Writer) {
	t.writer = w
}

func (t *TableFormatter) Format(frame *tabular.Frame) error {
	frame = frameOrEmpty(frame)
	columns := frame.Columns()

	table := tablewriter.NewWriter(t.writer)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(frame.ColumnNames())

	alignments := make([]int, len(columns))
	for i, column := range columns {
		switch column.Type() {
		case tabular.Integer, tabular.Float:
			alignments[i] = tablewriter.ALIGN_RIGHT
		default:
			alignments[i] = tablewriter.ALIGN_LEFT
		}
	}
	table.SetColumnAlignment(alignments)

	for row := 0; row < frame.NumRows(); row++ {
		record := make([]string, len(columns))
		for i, column := range columns {
			if column.IsNull(row) {
				record[i] = nullText
				continue
			}
			record[i] = column.Format(row)
		}
		table.Append(record)
	}
	table.Render()

	suffix := "s"
	if frame.NumRows() == 1 {
		suffix = ""
	}
	if _, err := fmt.Fprintf(t.writer, "(%d row%s)\n", frame.NumRows(), suffix); err != nil {
		return fmt.Errorf("write row count: %w", err)
	}
	return nil
}
