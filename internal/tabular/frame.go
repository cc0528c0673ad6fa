// Package tabular holds the engine-independent result table handed to
// presentation code.
package tabular

import "fmt"

// Frame is an immutable ordered set of equally long named columns.
type Frame struct {
	columns []Column
	index   map[string]int
	rows    int
}

// Empty returns a frame with no columns and no rows.
func Empty() *Frame {
	return &Frame{index: map[string]int{}}
}

// NewFrame builds a frame from columns in order. All columns must share one
// length and names must be unique.
func NewFrame(columns ...Column) (*Frame, error) {
	frame := &Frame{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, column := range columns {
		if column == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if i == 0 {
			frame.rows = column.Len()
		} else if column.Len() != frame.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", column.Name(), column.Len(), frame.rows)
		}
		if _, exists := frame.index[column.Name()]; exists {
			return nil, fmt.Errorf("duplicate column name %q", column.Name())
		}
		frame.index[column.Name()] = len(frame.columns)
		frame.columns = append(frame.columns, column)
	}
	return frame, nil
}

func (f *Frame) NumRows() int { return f.rows }

func (f *Frame) NumColumns() int { return len(f.columns) }

// Columns returns the columns in engine order.
func (f *Frame) Columns() []Column {
	out := make([]Column, len(f.columns))
	copy(out, f.columns)
	return out
}

func (f *Frame) ColumnAt(i int) Column { return f.columns[i] }

// Column looks a column up by name.
func (f *Frame) Column(name string) (Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.columns))
	for i, column := range f.columns {
		names[i] = column.Name()
	}
	return names
}

// Row returns the values of row i in column order, nil for NULL cells.
func (f *Frame) Row(i int) []any {
	if i < 0 || i >= f.rows {
		return nil
	}
	row := make([]any, len(f.columns))
	for j, column := range f.columns {
		row[j] = column.Value(i)
	}
	return row
}
