package duckframe

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/duckmesh/duckframe/internal/apperrors"
	"github.com/duckmesh/duckframe/internal/output"
	"github.com/duckmesh/duckframe/internal/pipeline"
	"github.com/duckmesh/duckframe/internal/query"
	"github.com/duckmesh/duckframe/internal/source"
	"github.com/duckmesh/duckframe/internal/tabular"
)

// Options carries defaults and collaborators. Engine and Describer serve
// local runs; HTTPClient serves runs against a duckframe-api server.
type Options struct {
	Source      string
	ContentType string
	Relation    string
	Format      string
	APIBaseURL  string
	APIKey      string
	Timeout     time.Duration
	Engine      query.Engine
	Describer   query.Describer
	HTTPClient  *http.Client
	Stdout      io.Writer
	Stderr      io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("duckframe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { writeUsage(stderr, fs) }

	sourceFlag := fs.String("source", defaults.Source, "source location: http(s) URL, s3://bucket/key, file:// URI or local path")
	contentType := fs.String("type", defaults.ContentType, "declared content type: csv, json or parquet (default: from the source extension)")
	relation := fs.String("relation", firstNonEmpty(defaults.Relation, source.DefaultRelation), "relation name the query refers to")
	format := fs.String("format", firstNonEmpty(defaults.Format, output.FormatTable), "output format: table, csv, json, jsonl or parquet")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 2*time.Minute), "overall timeout (e.g. 30s)")
	describe := fs.Bool("describe", false, "print the relation schema instead of running a query")
	apiURL := fs.String("api", defaults.APIBaseURL, "run against a duckframe-api base URL instead of the embedded engine")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for -api requests")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	sqlText := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if sqlText == "" && !*describe {
		writeUsage(stderr, fs)
		return 2
	}

	descriptor, err := source.NewDescriptor(*sourceFlag, *contentType, *relation)
	if err != nil {
		writeFailure(stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	formatter, err := output.New(*format, stdout)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	if strings.TrimSpace(*apiURL) != "" {
		client := defaults.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: *timeout}
		}
		return runRemote(ctx, client, *apiURL, *apiKey, descriptor, sqlText, *describe, formatter, stderr)
	}

	if *describe {
		return runDescribe(ctx, defaults.Describer, descriptor, formatter, stderr)
	}

	if defaults.Engine == nil {
		_, _ = fmt.Fprintln(stderr, "query engine is not configured")
		return 1
	}
	outcome := pipeline.NewRunner(defaults.Engine, nil).Run(ctx, query.Request{Source: descriptor, SQL: sqlText})
	if outcome.Err != nil {
		writeFailure(stderr, outcome.Err)
		return 1
	}
	if err := formatter.Format(outcome.Frame); err != nil {
		_, _ = fmt.Fprintf(stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runDescribe(ctx context.Context, describer query.Describer, descriptor source.Descriptor, formatter output.Formatter, stderr io.Writer) int {
	if describer == nil {
		_, _ = fmt.Fprintln(stderr, "schema describer is not configured")
		return 1
	}
	schema, err := describer.Describe(ctx, descriptor, 0)
	if err != nil {
		writeFailure(stderr, err)
		return 1
	}
	frame, err := schemaFrame(schema)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "build schema: %v\n", err)
		return 1
	}
	if err := formatter.Format(frame); err != nil {
		_, _ = fmt.Fprintf(stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runRemote(ctx context.Context, client *http.Client, baseURL, apiKey string, descriptor source.Descriptor, sqlText string, describe bool, formatter output.Formatter, stderr io.Writer) int {
	path := "/v1/query"
	payload := map[string]any{
		"source":       descriptor.Location,
		"content_type": string(descriptor.ContentType),
		"relation":     descriptor.Relation,
	}
	if describe {
		path = "/v1/describe"
	} else {
		payload["sql"] = sqlText
	}

	endpoint := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	code, responseBody, err := doRequest(ctx, client, http.MethodPost, endpoint, apiKey, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	var frame *tabular.Frame
	if describe {
		schema, decodeErr := decodeDescribeSchema(responseBody)
		if decodeErr == nil {
			frame, decodeErr = schemaFrame(schema)
		}
		err = decodeErr
	} else {
		frame, err = decodeQueryFrame(responseBody)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "read response: %v\n", err)
		return 1
	}
	if err := formatter.Format(frame); err != nil {
		_, _ = fmt.Fprintf(stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func writeFailure(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "error (%s): %v\n", apperrors.KindOf(err), err)
}

func writeUsage(w io.Writer, fs *flag.FlagSet) {
	_, _ = fmt.Fprintln(w, "usage: duckframe [flags] <sql>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Loads -source into an in-memory DuckDB relation and runs <sql> against it.")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "flags:")
	fs.PrintDefaults()
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
