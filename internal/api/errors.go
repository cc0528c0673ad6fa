package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/duckmesh/duckframe/internal/apperrors"
)

type errorMapping struct {
	status    int
	code      string
	retryable bool
}

var errorMappings = map[string]errorMapping{
	"invalid_source": {status: http.StatusBadRequest, code: "INVALID_SOURCE"},
	"query":          {status: http.StatusBadRequest, code: "QUERY_FAILED"},
	"ingestion":      {status: http.StatusUnprocessableEntity, code: "INGESTION_FAILED"},
	"fetch":          {status: http.StatusBadGateway, code: "FETCH_FAILED", retryable: true},
	"connection":     {status: http.StatusServiceUnavailable, code: "ENGINE_UNAVAILABLE", retryable: true},
	"conversion":     {status: http.StatusInternalServerError, code: "CONVERSION_FAILED"},
}

// writePipelineError maps a pipeline error kind onto the error envelope.
// The engine diagnostic is included as the message.
func writePipelineError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	mapping, ok := errorMappings[kind]
	if !ok {
		mapping = errorMapping{status: http.StatusInternalServerError, code: "INTERNAL_ERROR"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		mapping = errorMapping{status: http.StatusGatewayTimeout, code: "TIMEOUT", retryable: true}
	}
	writeError(ctx, w, mapping.status, mapping.code, err.Error(), mapping.retryable, map[string]any{"kind": kind})
}
