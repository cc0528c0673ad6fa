package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/duckmesh/duckframe/internal/apperrors"
	"github.com/duckmesh/duckframe/internal/observability"
	"github.com/duckmesh/duckframe/internal/storage"
)

type Config struct {
	Timeout    time.Duration
	MaxBytes   int64
	StagingDir string
	UserAgent  string
}

// Fetcher stages source locations as local files. Remote resources are
// downloaded once per call; local files are passed through.
type Fetcher struct {
	HTTPClient  *http.Client
	ObjectStore storage.ObjectStore
	StagingDir  string
	MaxBytes    int64
	UserAgent   string
	Logger      *slog.Logger
}

func NewFetcher(cfg Config, store storage.ObjectStore, logger *slog.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Fetcher{
		HTTPClient:  &http.Client{Timeout: timeout},
		ObjectStore: store,
		StagingDir:  cfg.StagingDir,
		MaxBytes:    cfg.MaxBytes,
		UserAgent:   cfg.UserAgent,
		Logger:      logger,
	}
}

// Staged is a source available at a local filesystem path.
type Staged struct {
	Path   string
	Size   int64
	Scheme string
	owned  bool
}

// NewStaged describes a file already on disk. When owned is true Close
// removes it.
func NewStaged(path string, size int64, scheme string, owned bool) *Staged {
	return &Staged{Path: path, Size: size, Scheme: scheme, owned: owned}
}

// Remote reports whether the file was downloaded into a temporary location.
func (s *Staged) Remote() bool {
	return s.owned
}

// Close removes the staged file when it was downloaded. Pass-through local
// files are left untouched.
func (s *Staged) Close() error {
	if s == nil || !s.owned || s.Path == "" {
		return nil
	}
	err := os.Remove(s.Path)
	s.owned = false
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove staged file %q: %w", s.Path, err)
	}
	return nil
}

// Fetch resolves location into a staged local file. A location that does not
// parse or names nothing retrievable fails with apperrors.ErrInvalidSource;
// transport failures fail with apperrors.ErrFetch.
func (f *Fetcher) Fetch(ctx context.Context, location string) (*Staged, error) {
	target, err := parseLocation(location)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var staged *Staged
	switch target.scheme {
	case schemeLocal:
		staged, err = stageLocal(target.path)
	case "http", "https":
		staged, err = f.fetchHTTP(ctx, target)
	case "s3":
		staged, err = f.fetchObject(ctx, target)
	}
	if err != nil {
		observability.ObserveFetch(target.scheme, "error", 0)
		return nil, err
	}
	observability.ObserveFetch(target.scheme, "ok", staged.Size)
	if f.Logger != nil {
		f.Logger.DebugContext(ctx, "source staged",
			slog.String("scheme", staged.Scheme),
			slog.String("path", staged.Path),
			slog.Int64("bytes", staged.Size),
			slog.String("duration", time.Since(start).String()),
		)
	}
	return staged, nil
}

const schemeLocal = "file"

type location struct {
	scheme string
	url    *url.URL
	path   string
	bucket string
	key    string
}

func parseLocation(raw string) (location, error) {
	const op = "parse source"
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return location{}, apperrors.InvalidSource(op, "source location is required")
	}

	if !strings.Contains(raw, "://") {
		if info, err := os.Stat(raw); err == nil && !info.IsDir() {
			return location{scheme: schemeLocal, path: raw}, nil
		}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return location{}, apperrors.InvalidSource(op, "parse %q: %v", raw, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		if parsed.Host == "" {
			return location{}, apperrors.InvalidSource(op, "url %q has no host", raw)
		}
		return location{scheme: strings.ToLower(parsed.Scheme), url: parsed}, nil
	case "file":
		if parsed.Host != "" && parsed.Host != "localhost" {
			return location{}, apperrors.InvalidSource(op, "file url %q names a remote host", raw)
		}
		if parsed.Path == "" {
			return location{}, apperrors.InvalidSource(op, "file url %q has no path", raw)
		}
		return location{scheme: schemeLocal, path: parsed.Path}, nil
	case "s3":
		key := strings.TrimPrefix(parsed.Path, "/")
		if parsed.Host == "" || key == "" {
			return location{}, apperrors.InvalidSource(op, "s3 url %q must name a bucket and key", raw)
		}
		return location{scheme: "s3", url: parsed, bucket: parsed.Host, key: key}, nil
	case "":
		return location{}, apperrors.InvalidSource(op, "%q is neither a url nor an existing file", raw)
	default:
		return location{}, apperrors.InvalidSource(op, "unsupported scheme %q", parsed.Scheme)
	}
}

func stageLocal(filePath string) (*Staged, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, apperrors.InvalidSource("stage local file", "%v", err)
	}
	if info.IsDir() {
		return nil, apperrors.InvalidSource("stage local file", "%q is a directory", filePath)
	}
	return NewStaged(filePath, info.Size(), schemeLocal, false), nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, target location) (*Staged, error) {
	const op = "download source"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.url.String(), nil)
	if err != nil {
		return nil, apperrors.InvalidSource(op, "build request: %v", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.Fetch(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, apperrors.Fetch(op, fmt.Errorf("GET %s: unexpected status %s", target.url.Redacted(), resp.Status))
	}
	return f.stageStream(resp.Body, target.scheme, path.Base(target.url.Path))
}

func (f *Fetcher) fetchObject(ctx context.Context, target location) (*Staged, error) {
	const op = "download object"
	if f.ObjectStore == nil {
		return nil, apperrors.InvalidSource(op, "no object store configured for %q", target.url.String())
	}
	// Oversized objects are refused before any bytes are transferred.
	info, err := f.ObjectStore.Stat(ctx, target.bucket, target.key)
	if err != nil {
		return nil, apperrors.Fetch(op, err)
	}
	if f.MaxBytes > 0 && info.Size > f.MaxBytes {
		return nil, apperrors.Fetch(op, fmt.Errorf("object %s is %d bytes, limit is %d", target.url.Redacted(), info.Size, f.MaxBytes))
	}
	reader, err := f.ObjectStore.Get(ctx, target.bucket, target.key)
	if err != nil {
		return nil, apperrors.Fetch(op, err)
	}
	defer func() { _ = reader.Close() }()
	return f.stageStream(reader, target.scheme, path.Base(target.key))
}

func (f *Fetcher) stageStream(body io.Reader, scheme, baseName string) (*Staged, error) {
	localPath, size, err := writeTemp(f.StagingDir, stagingPattern(baseName), body, f.MaxBytes)
	if err != nil {
		return nil, apperrors.Fetch("stage source", err)
	}
	return NewStaged(localPath, size, scheme, true), nil
}

func stagingPattern(baseName string) string {
	ext := extensionOf(baseName)
	full := path.Ext(baseName)
	if full != "" && full != ext {
		ext += full
	}
	if ext == "." || strings.ContainsAny(ext, `/\*`) {
		ext = ""
	}
	return "duckframe-source-*" + ext
}
