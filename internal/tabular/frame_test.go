package tabular

import (
	"testing"
	"time"
)

func TestNewFrameKeepsColumnOrder(t *testing.T) {
	frame, err := NewFrame(
		NewIntegerColumn("disc_year", []int64{1995, 1996}, nil),
		NewTextColumn("name", []string{"51 Peg b", "47 UMa b"}, nil),
	)
	if err != nil {
		t.Fatalf("NewFrame() error = %v", err)
	}
	if frame.NumRows() != 2 || frame.NumColumns() != 2 {
		t.Fatalf("shape = %dx%d", frame.NumRows(), frame.NumColumns())
	}
	names := frame.ColumnNames()
	if names[0] != "disc_year" || names[1] != "name" {
		t.Fatalf("ColumnNames() = %v", names)
	}
	row := frame.Row(1)
	if row[0] != int64(1996) || row[1] != "47 UMa b" {
		t.Fatalf("Row(1) = %#v", row)
	}
	if frame.Row(2) != nil {
		t.Fatal("expected nil for out-of-range row")
	}
}

func TestNewFrameRejectsUnequalLengths(t *testing.T) {
	_, err := NewFrame(
		NewIntegerColumn("a", []int64{1, 2}, nil),
		NewIntegerColumn("b", []int64{1}, nil),
	)
	if err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestNewFrameRejectsDuplicateNames(t *testing.T) {
	_, err := NewFrame(
		NewIntegerColumn("a", []int64{1}, nil),
		NewTextColumn("a", []string{"x"}, nil),
	)
	if err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestEmptyFrame(t *testing.T) {
	frame := Empty()
	if frame.NumRows() != 0 || frame.NumColumns() != 0 {
		t.Fatalf("shape = %dx%d", frame.NumRows(), frame.NumColumns())
	}
	if _, ok := frame.Column("x"); ok {
		t.Fatal("expected missing column")
	}
}

func TestColumnNullsAndFormatting(t *testing.T) {
	day := time.Date(2024, time.February, 22, 0, 0, 0, 0, time.UTC)
	frame, err := NewFrame(
		NewTextColumn("t", []string{"a", ""}, []bool{false, true}),
		NewIntegerColumn("i", []int64{-3, 0}, []bool{false, true}),
		NewFloatColumn("f", []float64{2.5, 0}, []bool{false, true}),
		NewDateColumn("d", []time.Time{day, {}}, []bool{false, true}),
		NewNativeColumn("b", "BOOLEAN", []any{true, nil}, []bool{false, true}),
	)
	if err != nil {
		t.Fatalf("NewFrame() error = %v", err)
	}

	want := []string{"a", "-3", "2.5", "2024-02-22", "true"}
	for i, column := range frame.Columns() {
		if got := column.Format(0); got != want[i] {
			t.Fatalf("%s.Format(0) = %q, want %q", column.Name(), got, want[i])
		}
		if !column.IsNull(1) || column.Value(1) != nil || column.Format(1) != "" {
			t.Fatalf("%s row 1 should be NULL", column.Name())
		}
	}

	native, ok := frame.ColumnAt(4).(*NativeColumn)
	if !ok {
		t.Fatalf("column 4 = %T", frame.ColumnAt(4))
	}
	if native.EngineType() != "BOOLEAN" || native.Type() != Native {
		t.Fatalf("native column = %s %s", native.EngineType(), native.Type())
	}
}

func TestTypedAccessors(t *testing.T) {
	column := NewIntegerColumn("n", []int64{7, 0}, []bool{false, true})
	if v, ok := column.At(0); !ok || v != 7 {
		t.Fatalf("At(0) = %d, %v", v, ok)
	}
	if _, ok := column.At(1); ok {
		t.Fatal("At(1) should report NULL")
	}
	values := column.Values()
	values[0] = 99
	if v, _ := column.At(0); v != 7 {
		t.Fatal("Values() must return a copy")
	}
}

func TestTypeString(t *testing.T) {
	cases := map[Type]string{Text: "text", Integer: "integer", Float: "float", Date: "date", Native: "native"}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Fatalf("Type(%d).String() = %q, want %q", typ, got, want)
		}
	}
}
