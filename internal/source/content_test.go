package source

import "testing"

func TestIngestFunction(t *testing.T) {
	cases := []struct {
		token string
		want  string
	}{
		{"json", ReadJSONAuto},
		{"JSON", ReadJSONAuto},
		{".json", ReadJSONAuto},
		{"parquet", ReadParquet},
		{"csv", ReadCSV},
		{"", ReadCSV},
		{"tsv", ReadCSV},
		{"ndjson", ReadCSV},
		{"  xlsx  ", ReadCSV},
	}
	for _, tc := range cases {
		if got := IngestFunction(tc.token); got != tc.want {
			t.Fatalf("IngestFunction(%q) = %q, want %q", tc.token, got, tc.want)
		}
	}
}

func TestInferContentType(t *testing.T) {
	cases := []struct {
		location string
		want     ContentType
	}{
		{"https://example.com/data/planets.json", JSON},
		{"https://example.com/data/planets.parquet?version=2", Parquet},
		{"https://example.com/TAP/sync?query=select+pl_name&format=json", CSV},
		{"s3://bucket/exports/events.json.gz", JSON},
		{"/tmp/local/file.PARQUET", Parquet},
		{"file:///Users/me/Downloads/planets.csv", CSV},
		{"relative/path/without/extension", CSV},
	}
	for _, tc := range cases {
		if got := InferContentType(tc.location); got != tc.want {
			t.Fatalf("InferContentType(%q) = %q, want %q", tc.location, got, tc.want)
		}
	}
}

func TestStagingPattern(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"planets.csv", "duckframe-source-*.csv"},
		{"events.json.gz", "duckframe-source-*.json.gz"},
		{"sync", "duckframe-source-*"},
		{".", "duckframe-source-*"},
	}
	for _, tc := range cases {
		if got := stagingPattern(tc.base); got != tc.want {
			t.Fatalf("stagingPattern(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}
