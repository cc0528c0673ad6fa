package source

import (
	"log/slog"

	"github.com/duckmesh/duckframe/internal/config"
	"github.com/duckmesh/duckframe/internal/storage"
	s3store "github.com/duckmesh/duckframe/internal/storage/s3"
)

// NewFetcherFromConfig builds a Fetcher from service configuration. s3://
// sources are enabled only when an object store endpoint is configured.
func NewFetcherFromConfig(cfg config.Config, logger *slog.Logger) (*Fetcher, error) {
	var store storage.ObjectStore
	if cfg.ObjectStore.Endpoint != "" {
		s3, err := s3store.New(s3store.Config{
			Endpoint:        cfg.ObjectStore.Endpoint,
			Region:          cfg.ObjectStore.Region,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			UseSSL:          cfg.ObjectStore.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		store = s3
	}
	return NewFetcher(Config{
		Timeout:    cfg.Fetch.Timeout,
		MaxBytes:   cfg.Fetch.MaxBytes,
		StagingDir: cfg.Fetch.StagingDir,
		UserAgent:  cfg.Fetch.UserAgent,
	}, store, logger), nil
}
