package nl2sql

import (
	"context"

	"github.com/duckmesh/duckframe/internal/query"
)

type ColumnContext struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type TableContext struct {
	Relation   string          `json:"relation"`
	Columns    []ColumnContext `json:"columns"`
	SampleRows [][]any         `json:"sample_rows,omitempty"`
}

type Request struct {
	NaturalLanguage string         `json:"natural_language"`
	Tables          []TableContext `json:"tables"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// TableContextFromSchema builds prompt context from a described relation.
func TableContextFromSchema(schema query.Schema) TableContext {
	table := TableContext{Relation: schema.Relation}
	for _, column := range schema.Columns {
		table.Columns = append(table.Columns, ColumnContext{Name: column.Name, Type: column.EngineType})
	}
	if schema.Sample != nil {
		for i := 0; i < schema.Sample.NumRows(); i++ {
			row := make([]any, 0, schema.Sample.NumColumns())
			for _, column := range schema.Sample.Columns() {
				if column.IsNull(i) {
					row = append(row, nil)
					continue
				}
				row = append(row, column.Format(i))
			}
			table.SampleRows = append(table.SampleRows, row)
		}
	}
	return table
}
