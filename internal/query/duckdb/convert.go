package duckdb

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	goduckdb "github.com/marcboeker/go-duckdb/v2"

	"github.com/duckmesh/duckframe/internal/apperrors"
	"github.com/duckmesh/duckframe/internal/tabular"
)

// family groups engine logical types by the semantic type they convert to.
type family int

const (
	familyNative family = iota
	familyText
	familyInteger
	familyFloat
	familyDate
)

func familyOf(engineType string) family {
	name := strings.ToUpper(strings.TrimSpace(engineType))
	if idx := strings.IndexByte(name, '('); idx >= 0 {
		name = strings.TrimSpace(name[:idx])
	}
	switch name {
	case "VARCHAR", "UUID":
		return familyText
	case "TINYINT", "SMALLINT", "INTEGER", "BIGINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT":
		return familyInteger
	case "FLOAT", "DOUBLE", "DECIMAL":
		return familyFloat
	case "DATE":
		return familyDate
	default:
		return familyNative
	}
}

func (f family) Type() tabular.Type {
	switch f {
	case familyText:
		return tabular.Text
	case familyInteger:
		return tabular.Integer
	case familyFloat:
		return tabular.Float
	case familyDate:
		return tabular.Date
	default:
		return tabular.Native
	}
}

// convertColumn builds one generic column from the raw driver values of a
// result column. A nil value is NULL.
func convertColumn(name, engineType string, values []any) (tabular.Column, error) {
	nulls := make([]bool, len(values))
	for i, value := range values {
		nulls[i] = value == nil
	}

	switch familyOf(engineType) {
	case familyText:
		isUUID := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(engineType)), "UUID")
		out := make([]string, len(values))
		for i, value := range values {
			if nulls[i] {
				continue
			}
			text, err := toText(value, isUUID)
			if err != nil {
				return nil, conversionError(name, engineType, i, err)
			}
			out[i] = text
		}
		return tabular.NewTextColumn(name, out, nulls), nil
	case familyInteger:
		out := make([]int64, len(values))
		for i, value := range values {
			if nulls[i] {
				continue
			}
			n, err := toInteger(value)
			if err != nil {
				return nil, conversionError(name, engineType, i, err)
			}
			out[i] = n
		}
		return tabular.NewIntegerColumn(name, out, nulls), nil
	case familyFloat:
		out := make([]float64, len(values))
		for i, value := range values {
			if nulls[i] {
				continue
			}
			f, err := toFloat(value)
			if err != nil {
				return nil, conversionError(name, engineType, i, err)
			}
			out[i] = f
		}
		return tabular.NewFloatColumn(name, out, nulls), nil
	case familyDate:
		out := make([]time.Time, len(values))
		for i, value := range values {
			if nulls[i] {
				continue
			}
			ts, ok := value.(time.Time)
			if !ok {
				return nil, conversionError(name, engineType, i, fmt.Errorf("unexpected %T", value))
			}
			out[i] = ts
		}
		return tabular.NewDateColumn(name, out, nulls), nil
	default:
		out := make([]any, len(values))
		for i, value := range values {
			out[i] = normalizeNative(value)
		}
		return tabular.NewNativeColumn(name, engineType, out, nulls), nil
	}
}

func conversionError(column, engineType string, row int, err error) error {
	return apperrors.Conversion(
		fmt.Sprintf("convert column %q (%s) row %d", column, engineType, row),
		err,
	)
}

var uuidArrayType = reflect.TypeOf([16]byte{})

func toText(value any, isUUID bool) (string, error) {
	switch typed := value.(type) {
	case string:
		return typed, nil
	case []byte:
		if isUUID && len(typed) == 16 {
			id, err := uuid.FromBytes(typed)
			if err != nil {
				return "", err
			}
			return id.String(), nil
		}
		return string(typed), nil
	case uuid.UUID:
		return typed.String(), nil
	}

	// The driver exposes UUIDs as a named [16]byte type.
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Array && rv.Type().ConvertibleTo(uuidArrayType) {
		raw := rv.Convert(uuidArrayType).Interface().([16]byte)
		return uuid.UUID(raw).String(), nil
	}
	if stringer, ok := value.(fmt.Stringer); ok {
		return stringer.String(), nil
	}
	return "", fmt.Errorf("unexpected %T", value)
}

func toInteger(value any) (int64, error) {
	switch typed := value.(type) {
	case int8:
		return int64(typed), nil
	case int16:
		return int64(typed), nil
	case int32:
		return int64(typed), nil
	case int64:
		return typed, nil
	case int:
		return int64(typed), nil
	case uint8:
		return int64(typed), nil
	case uint16:
		return int64(typed), nil
	case uint32:
		return int64(typed), nil
	case uint64:
		if typed > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", typed)
		}
		return int64(typed), nil
	default:
		return 0, fmt.Errorf("unexpected %T", value)
	}
}

func toFloat(value any) (float64, error) {
	switch typed := value.(type) {
	case float32:
		return float64(typed), nil
	case float64:
		return typed, nil
	case goduckdb.Decimal:
		return decimalToFloat(typed)
	case *goduckdb.Decimal:
		if typed == nil {
			return 0, fmt.Errorf("nil decimal")
		}
		return decimalToFloat(*typed)
	default:
		return 0, fmt.Errorf("unexpected %T", value)
	}
}

func decimalToFloat(d goduckdb.Decimal) (float64, error) {
	if d.Value == nil {
		return 0, fmt.Errorf("decimal without value")
	}
	denominator := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Scale)), nil)
	f, _ := new(big.Rat).SetFrac(d.Value, denominator).Float64()
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("decimal %s out of float64 range", d.Value.String())
	}
	return f, nil
}

func normalizeNative(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}
