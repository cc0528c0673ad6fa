package output

import (
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/duckmesh/duckframe/internal/tabular"
)

// ParquetFormatter writes a frame as a single Parquet file. Every column is
// optional so NULL cells survive; native columns are stored as text.
type ParquetFormatter struct {
	out io.Writer
}

func NewParquetFormatter(w io.Writer) *ParquetFormatter {
	return &ParquetFormatter{out: w}
}

func (f *ParquetFormatter) SetOutput(w io.Writer) { f.out = w }

func (f *ParquetFormatter) Format(frame *tabular.Frame) error {
	frame = frameOrEmpty(frame)
	schema, leaves, err := parquetSchema(frame)
	if err != nil {
		return err
	}

	writer := parquet.NewWriter(f.out, schema)
	rows := make([]parquet.Row, 0, frame.NumRows())
	for i := 0; i < frame.NumRows(); i++ {
		row := make(parquet.Row, len(leaves))
		for c, column := range frame.Columns() {
			leaf := leaves[c]
			if column.IsNull(i) {
				row[leaf] = parquet.NullValue().Level(0, 0, leaf)
				continue
			}
			row[leaf] = parquetValue(column, i).Level(0, 1, leaf)
		}
		rows = append(rows, row)
	}
	if _, err := writer.WriteRows(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// parquetSchema returns the schema and, per frame column, its leaf index.
// Group fields are ordered by name, so leaf indexes differ from frame order.
func parquetSchema(frame *tabular.Frame) (*parquet.Schema, []int, error) {
	group := parquet.Group{}
	for _, column := range frame.Columns() {
		group[column.Name()] = parquet.Optional(parquetNode(column.Type()))
	}
	schema := parquet.NewSchema("result", group)

	leaves := make([]int, frame.NumColumns())
	for i, column := range frame.Columns() {
		leaf, ok := schema.Lookup(column.Name())
		if !ok {
			return nil, nil, fmt.Errorf("parquet column %q missing from schema", column.Name())
		}
		leaves[i] = leaf.ColumnIndex
	}
	return schema, leaves, nil
}

func parquetNode(t tabular.Type) parquet.Node {
	switch t {
	case tabular.Integer:
		return parquet.Int(64)
	case tabular.Float:
		return parquet.Leaf(parquet.DoubleType)
	case tabular.Date:
		return parquet.Date()
	default:
		return parquet.String()
	}
}

func parquetValue(column tabular.Column, row int) parquet.Value {
	switch typed := column.(type) {
	case *tabular.IntegerColumn:
		v, _ := typed.At(row)
		return parquet.Int64Value(v)
	case *tabular.FloatColumn:
		v, _ := typed.At(row)
		return parquet.DoubleValue(v)
	case *tabular.DateColumn:
		v, _ := typed.At(row)
		return parquet.Int32Value(daysSinceEpoch(v))
	case *tabular.TextColumn:
		v, _ := typed.At(row)
		return parquet.ByteArrayValue([]byte(v))
	default:
		return parquet.ByteArrayValue([]byte(column.Format(row)))
	}
}

func daysSinceEpoch(t time.Time) int32 {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int32(midnight.Unix() / 86400)
}
