package query

import (
	"context"
	"time"

	"github.com/duckmesh/duckframe/internal/source"
	"github.com/duckmesh/duckframe/internal/tabular"
)

type Request struct {
	Source source.Descriptor
	SQL    string
}

type Result struct {
	Frame       *tabular.Frame
	Duration    time.Duration
	StagedBytes int64
}

type Column struct {
	Name       string
	EngineType string
	Type       tabular.Type
}

// Schema describes one loaded relation. Sample holds up to the requested
// number of leading rows.
type Schema struct {
	Relation string
	Columns  []Column
	Sample   *tabular.Frame
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

type Describer interface {
	Describe(ctx context.Context, descriptor source.Descriptor, sampleRows int) (Schema, error)
}
