package duckframe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/duckmesh/duckframe/internal/query"
	"github.com/duckmesh/duckframe/internal/tabular"
)

type remoteColumn struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	EngineType string `json:"engine_type"`
}

type remoteQueryResponse struct {
	Columns []remoteColumn      `json:"columns"`
	Rows    [][]json.RawMessage `json:"rows"`
}

type remoteDescribeResponse struct {
	Relation string         `json:"relation"`
	Columns  []remoteColumn `json:"columns"`
}

// decodeQueryFrame rebuilds the frame a duckframe-api /v1/query response
// describes, so remote results go through the same formatters as local ones.
func decodeQueryFrame(body []byte) (*tabular.Frame, error) {
	var response remoteQueryResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	columns := make([]tabular.Column, 0, len(response.Columns))
	for i, meta := range response.Columns {
		cells := make([]json.RawMessage, len(response.Rows))
		for r, row := range response.Rows {
			if i >= len(row) {
				return nil, fmt.Errorf("row %d has %d cells, want %d", r, len(row), len(response.Columns))
			}
			cells[r] = row[i]
		}
		column, err := decodeColumn(meta, cells)
		if err != nil {
			return nil, fmt.Errorf("decode column %q: %w", meta.Name, err)
		}
		columns = append(columns, column)
	}
	return tabular.NewFrame(columns...)
}

func decodeDescribeSchema(body []byte) (query.Schema, error) {
	var response remoteDescribeResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return query.Schema{}, fmt.Errorf("decode describe response: %w", err)
	}
	schema := query.Schema{Relation: response.Relation, Columns: make([]query.Column, 0, len(response.Columns))}
	for _, meta := range response.Columns {
		schema.Columns = append(schema.Columns, query.Column{
			Name:       meta.Name,
			EngineType: meta.EngineType,
			Type:       typeFromName(meta.Type),
		})
	}
	return schema, nil
}

func typeFromName(name string) tabular.Type {
	for _, t := range []tabular.Type{tabular.Text, tabular.Integer, tabular.Float, tabular.Date} {
		if t.String() == name {
			return t
		}
	}
	return tabular.Native
}

func decodeColumn(meta remoteColumn, cells []json.RawMessage) (tabular.Column, error) {
	nulls := make([]bool, len(cells))
	values := make([]any, len(cells))
	for i, cell := range cells {
		decoder := json.NewDecoder(bytes.NewReader(cell))
		decoder.UseNumber()
		if err := decoder.Decode(&values[i]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		nulls[i] = values[i] == nil
	}

	switch typeFromName(meta.Type) {
	case tabular.Text:
		out := make([]string, len(values))
		for i, value := range values {
			if nulls[i] {
				continue
			}
			text, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("row %d: unexpected %T", i, value)
			}
			out[i] = text
		}
		return tabular.NewTextColumn(meta.Name, out, nulls), nil
	case tabular.Integer:
		out := make([]int64, len(values))
		for i, value := range values {
			if nulls[i] {
				continue
			}
			number, ok := value.(json.Number)
			if !ok {
				return nil, fmt.Errorf("row %d: unexpected %T", i, value)
			}
			n, err := number.Int64()
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			out[i] = n
		}
		return tabular.NewIntegerColumn(meta.Name, out, nulls), nil
	case tabular.Float:
		out := make([]float64, len(values))
		for i, value := range values {
			if nulls[i] {
				continue
			}
			// Non-finite values arrive as strings such as "NaN" or "+Inf".
			var text string
			switch typed := value.(type) {
			case json.Number:
				text = typed.String()
			case string:
				text = typed
			default:
				return nil, fmt.Errorf("row %d: unexpected %T", i, value)
			}
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			out[i] = f
		}
		return tabular.NewFloatColumn(meta.Name, out, nulls), nil
	case tabular.Date:
		out := make([]time.Time, len(values))
		for i, value := range values {
			if nulls[i] {
				continue
			}
			text, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("row %d: unexpected %T", i, value)
			}
			ts, err := time.Parse(tabular.DateLayout, text)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			out[i] = ts
		}
		return tabular.NewDateColumn(meta.Name, out, nulls), nil
	default:
		return tabular.NewNativeColumn(meta.Name, meta.EngineType, values, nulls), nil
	}
}
