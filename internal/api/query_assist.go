package api

import (
	"net/http"
	"strings"

	"github.com/duckmesh/duckframe/internal/nl2sql"
)

type translateRequest struct {
	sourceFields
	Prompt string `json:"prompt"`
}

func handleTranslateQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.QueryTranslator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return
	}
	if deps.SchemaDescriber == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DESCRIBE_NOT_CONFIGURED", "schema describer is not configured", false, nil)
		return
	}

	var req translateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "PROMPT_REQUIRED", "prompt is required", false, nil)
		return
	}
	descriptor, err := deps.descriptor(req.sourceFields)
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

	result, err := deps.QueryTranslator.Translate(ctx, nl2sql.Request{
		NaturalLanguage: req.Prompt,
		Tables:          []nl2sql.TableContext{nl2sql.TableContextFromSchema(schema)},
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATE_FAILED", "failed to translate query", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sql":      result.SQL,
		"provider": result.Provider,
		"model":    result.Model,
		"relation": schema.Relation,
	})
}
