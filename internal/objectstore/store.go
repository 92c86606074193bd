// Package objectstore adapts S3-compatible clients to the two operations the
// sync pipeline needs: listing one level under a prefix and fetching an
// object to a local file.
package objectstore

import (
	"context"
	"fmt"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
)

// Lister enumerates objects directly under a prefix. Sub-folders are reported
// as objects whose key ends in the delimiter.
type Lister interface {
	List(ctx context.Context, prefix string) ([]model.Object, error)
}

// Fetcher downloads a single object to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, key, localPath string) error
}

// Store is a remote object store bound to one bucket.
type Store interface {
	Lister
	Fetcher

	// Name returns the driver identifier.
	Name() string
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig, log logger.ILogger) (Store, error) {
	switch cfg.Driver {
	case config.DriverS3, "":
		return NewS3Store(ctx, cfg, log)
	case config.DriverMinio:
		return NewMinioStore(cfg, log)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}
