package tabular

import (
	"fmt"
	"strconv"
	"time"
)

// Type is the semantic type held by a column.
type Type int

const (
	Text Type = iota
	Integer
	Float
	Date
	Native
)

func (t Type) String() string {
	switch t {
	case Text:
		return "text"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Date:
		return "date"
	case Native:
		return "native"
	default:
		return "type(" + strconv.Itoa(int(t)) + ")"
	}
}

// DateLayout is the textual form of date cells.
const DateLayout = "2006-01-02"

// Column is one named column of a Frame. The set of implementations is closed:
// *TextColumn, *IntegerColumn, *FloatColumn, *DateColumn and *NativeColumn.
type Column interface {
	Name() string
	Type() Type
	Len() int
	IsNull(i int) bool
	// Value returns the cell as its Go value, or nil for NULL.
	Value(i int) any
	// Format returns the cell's textual rendering, or "" for NULL.
	Format(i int) string

	column()
}

type series[T any] struct {
	name   string
	values []T
	nulls  []bool
}

func newSeries[T any](name string, values []T, nulls []bool) series[T] {
	if nulls == nil {
		nulls = make([]bool, len(values))
	}
	if len(nulls) != len(values) {
		panic(fmt.Sprintf("tabular: column %q has %d values and %d null flags", name, len(values), len(nulls)))
	}
	return series[T]{name: name, values: values, nulls: nulls}
}

func (s *series[T]) Name() string { return s.name }

func (s *series[T]) Len() int { return len(s.values) }

func (s *series[T]) IsNull(i int) bool { return s.nulls[i] }

func (s *series[T]) Value(i int) any {
	if s.nulls[i] {
		return nil
	}
	return s.values[i]
}

// At returns the typed cell and whether it is non-NULL.
func (s *series[T]) At(i int) (T, bool) {
	return s.values[i], !s.nulls[i]
}

// Values returns a copy of the typed cells. NULL cells hold the zero value.
func (s *series[T]) Values() []T {
	out := make([]T, len(s.values))
	copy(out, s.values)
	return out
}

func (s *series[T]) column() {}

type TextColumn struct{ series[string] }

func NewTextColumn(name string, values []string, nulls []bool) *TextColumn {
	return &TextColumn{newSeries(name, values, nulls)}
}

func (c *TextColumn) Type() Type { return Text }

func (c *TextColumn) Format(i int) string {
	if c.nulls[i] {
		return ""
	}
	return c.values[i]
}

type IntegerColumn struct{ series[int64] }

func NewIntegerColumn(name string, values []int64, nulls []bool) *IntegerColumn {
	return &IntegerColumn{newSeries(name, values, nulls)}
}

func (c *IntegerColumn) Type() Type { return Integer }

func (c *IntegerColumn) Format(i int) string {
	if c.nulls[i] {
		return ""
	}
	return strconv.FormatInt(c.values[i], 10)
}

type FloatColumn struct{ series[float64] }

func NewFloatColumn(name string, values []float64, nulls []bool) *FloatColumn {
	return &FloatColumn{newSeries(name, values, nulls)}
}

func (c *FloatColumn) Type() Type { return Float }

func (c *FloatColumn) Format(i int) string {
	if c.nulls[i] {
		return ""
	}
	return strconv.FormatFloat(c.values[i], 'f', -1, 64)
}

type DateColumn struct{ series[time.Time] }

func NewDateColumn(name string, values []time.Time, nulls []bool) *DateColumn {
	return &DateColumn{newSeries(name, values, nulls)}
}

func (c *DateColumn) Type() Type { return Date }

func (c *DateColumn) Format(i int) string {
	if c.nulls[i] {
		return ""
	}
	return c.values[i].Format(DateLayout)
}

// NativeColumn carries engine values that have no semantic mapping, together
// with their default textual rendering.
type NativeColumn struct {
	series[any]
	engineType string
	text       []string
}

func NewNativeColumn(name, engineType string, values []any, nulls []bool) *NativeColumn {
	c := &NativeColumn{series: newSeries(name, values, nulls), engineType: engineType}
	c.text = make([]string, len(values))
	for i, v := range values {
		if c.nulls[i] {
			continue
		}
		c.text[i] = renderNative(v)
	}
	return c
}

func (c *NativeColumn) Type() Type { return Native }

// EngineType is the engine's logical type name for the column.
func (c *NativeColumn) EngineType() string { return c.engineType }

func (c *NativeColumn) Format(i int) string { return c.text[i] }

func renderNative(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case []byte:
		return string(typed)
	case time.Time:
		return typed.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}
