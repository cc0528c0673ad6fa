package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/duckmesh/duckframe/internal/apperrors"
	"github.com/duckmesh/duckframe/internal/output"
	"github.com/duckmesh/duckframe/internal/query"
	"github.com/duckmesh/duckframe/internal/source"
	"github.com/duckmesh/duckframe/internal/tabular"
)

type sourceFields struct {
	Source      string `json:"source"`
	ContentType string `json:"content_type"`
	Relation    string `json:"relation"`
}

type queryRequest struct {
	sourceFields
	SQL string `json:"sql"`
}

type columnResponse struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	EngineType string `json:"engine_type,omitempty"`
}

type queryResponse struct {
	Columns  []columnResponse    `json:"columns"`
	Rows     [][]json.RawMessage `json:"rows"`
	RowCount int                 `json:"row_count"`
	Stats    map[string]any      `json:"stats"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.QueryEngine == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query engine is not configured", false, nil)
		return
	}

	var request queryRequest
	if !decodeBody(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	descriptor, err := deps.descriptor(request.sourceFields)
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}

	ctx, cancel := deps.queryContext(r.Context())
	defer cancel()
	result, err := deps.QueryEngine.Execute(ctx, query.Request{Source: descriptor, SQL: request.SQL})
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}

	rows, err := encodeRows(result.Frame)
	if err != nil {
		writePipelineError(r.Context(), w, apperrors.Conversion("encode rows", err))
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Columns:  frameColumns(result.Frame),
		Rows:     rows,
		RowCount: frameRows(result.Frame),
		Stats: map[string]any{
			"duration_ms":  result.Duration.Milliseconds(),
			"staged_bytes": result.StagedBytes,
		},
	})
}

func handleDescribe(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.SchemaDescriber == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DESCRIBE_NOT_CONFIGURED", "schema describer is not configured", false, nil)
		return
	}

	var request sourceFields
	if !decodeBody(w, r, &request) {
		return
	}
	descriptor, err := deps.descriptor(request)
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}

	ctx, cancel := deps.queryContext(r.Context())
	defer cancel()
	schema, err := deps.SchemaDescriber.Describe(ctx, descriptor, deps.sampleRows())
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}

	columns := make([]columnResponse, 0, len(schema.Columns))
	for _, column := range schema.Columns {
		columns = append(columns, columnResponse{Name: column.Name, Type: column.Type.String(), EngineType: column.EngineType})
	}
	sample, err := encodeRows(schema.Sample)
	if err != nil {
		writePipelineError(r.Context(), w, apperrors.Conversion("encode sample rows", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"relation":     schema.Relation,
		"content_type": string(descriptor.ContentType),
		"columns":      columns,
		"sample_rows":  sample,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return false
	}
	return true
}

func (d Dependencies) descriptor(fields sourceFields) (source.Descriptor, error) {
	location := strings.TrimSpace(fields.Source)
	contentType := strings.TrimSpace(fields.ContentType)
	if location == "" {
		location = d.Defaults.Location
		if contentType == "" {
			contentType = d.Defaults.ContentType
		}
	}
	relation := strings.TrimSpace(fields.Relation)
	if relation == "" {
		relation = d.Defaults.Relation
	}
	return source.NewDescriptor(location, contentType, relation)
}

func (d Dependencies) queryContext(parent context.Context) (context.Context, context.CancelFunc) {
	if d.QueryTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d.QueryTimeout)
}

func (d Dependencies) sampleRows() int {
	if d.SchemaSampleRows > 0 {
		return d.SchemaSampleRows
	}
	return 5
}

func frameColumns(frame *tabular.Frame) []columnResponse {
	if frame == nil {
		return []columnResponse{}
	}
	columns := make([]columnResponse, 0, frame.NumColumns())
	for _, column := range frame.Columns() {
		response := columnResponse{Name: column.Name(), Type: column.Type().String()}
		if native, ok := column.(*tabular.NativeColumn); ok {
			response.EngineType = native.EngineType()
		}
		columns = append(columns, response)
	}
	return columns
}

func frameRows(frame *tabular.Frame) int {
	if frame == nil {
		return 0
	}
	return frame.NumRows()
}

func encodeRows(frame *tabular.Frame) ([][]json.RawMessage, error) {
	rows := make([][]json.RawMessage, 0)
	if frame == nil {
		return rows, nil
	}
	columns := frame.Columns()
	for i := 0; i < frame.NumRows(); i++ {
		row := make([]json.RawMessage, len(columns))
		for j, column := range columns {
			cell, err := output.CellJSON(column, i)
			if err != nil {
				return nil, err
			}
			row[j] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}
