package duckframe

import (
	"github.com/duckmesh/duckframe/internal/query"
	"github.com/duckmesh/duckframe/internal/tabular"
)

// schemaFrame lays out a relation schema as a frame so every output format
// can render it.
func schemaFrame(schema query.Schema) (*tabular.Frame, error) {
	names := make([]string, len(schema.Columns))
	engineTypes := make([]string, len(schema.Columns))
	types := make([]string, len(schema.Columns))
	for i, column := range schema.Columns {
		names[i] = column.Name
		engineTypes[i] = column.EngineType
		types[i] = column.Type.String()
	}
	return tabular.NewFrame(
		tabular.NewTextColumn("column_name", names, nil),
		tabular.NewTextColumn("engine_type", engineTypes, nil),
		tabular.NewTextColumn("type", types, nil),
	)
}
