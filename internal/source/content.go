package source

import (
	"net/url"
	"path"
	"strings"
)

// ContentType is the declared format of a source.
type ContentType string

const (
	CSV     ContentType = "csv"
	JSON    ContentType = "json"
	Parquet ContentType = "parquet"
)

// Engine ingestion functions, one per content type.
const (
	ReadCSV      = "read_csv"
	ReadJSONAuto = "read_json_auto"
	ReadParquet  = "read_parquet"
)

// ParseContentType maps a declared type token to a ContentType. Unknown and
// empty tokens fall back to CSV.
func ParseContentType(token string) ContentType {
	switch normalizeToken(token) {
	case "json":
		return JSON
	case "parquet":
		return Parquet
	default:
		return CSV
	}
}

// IngestFunction returns the engine function that reads the given declared
// type. It never fails: anything unrecognized is read as CSV.
func IngestFunction(token string) string {
	return ParseContentType(token).IngestFunction()
}

func (c ContentType) IngestFunction() string {
	switch c {
	case JSON:
		return ReadJSONAuto
	case Parquet:
		return ReadParquet
	default:
		return ReadCSV
	}
}

// InferContentType derives the declared type from the location's path
// extension. A trailing compression extension is looked through, so
// "events.json.gz" is JSON. Query strings never participate.
func InferContentType(location string) ContentType {
	return ParseContentType(extensionOf(location))
}

func extensionOf(location string) string {
	location = strings.TrimSpace(location)
	p := location
	if strings.Contains(location, "://") {
		if parsed, err := url.Parse(location); err == nil {
			p = parsed.Path
		}
	}
	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case ".gz", ".gzip", ".zst":
		ext = strings.ToLower(path.Ext(strings.TrimSuffix(p, path.Ext(p))))
	}
	return ext
}

func normalizeToken(token string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(token)), ".")
}
