// Package providers opens an objectstore.Store by provider name.
package providers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/coin-ingest/pkg/objectstore"
	"github.com/Sternrassler/coin-ingest/pkg/objectstore/azureblob"
	"github.com/Sternrassler/coin-ingest/pkg/objectstore/gcsstore"
	"github.com/Sternrassler/coin-ingest/pkg/objectstore/localstore"
	"github.com/Sternrassler/coin-ingest/pkg/objectstore/s3store"
)

// Provider names.
const (
	S3    = "s3"
	Azure = "azure"
	GCS   = "gcs"
	Local = "local"
)

// Config selects a provider and carries the settings of each.
// Bucket overrides the bucket or container of the selected provider when set.
type Config struct {
	Provider string
	Bucket   string

	S3        s3store.Config
	Azure     azureblob.Config
	GCS       gcsstore.Config
	LocalRoot string
}

// Open creates the store named by cfg.Provider.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (objectstore.Store, error) {
	var (
		store objectstore.Store
		err   error
	)

	switch strings.ToLower(cfg.Provider) {
	case S3:
		s3cfg := cfg.S3
		if cfg.Bucket != "" {
			s3cfg.Bucket = cfg.Bucket
		}
		store, err = nonNil(s3store.New(ctx, s3cfg, logger))
	case Azure:
		azcfg := cfg.Azure
		if cfg.Bucket != "" {
			azcfg.Container = cfg.Bucket
		}
		store, err = nonNil(azureblob.New(azcfg, logger))
	case GCS:
		gcfg := cfg.GCS
		if cfg.Bucket != "" {
			gcfg.Bucket = cfg.Bucket
		}
		store, err = nonNil(gcsstore.New(ctx, gcfg, logger))
	case Local:
		root := cfg.LocalRoot
		if cfg.Bucket != "" && root != "" {
			root = filepath.Join(root, cfg.Bucket)
		}
		store, err = nonNil(localstore.New(root, logger))
	default:
		return nil, fmt.Errorf("unknown object store provider %q (known: %s, %s, %s, %s)", cfg.Provider, S3, Azure, GCS, Local)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// nonNil keeps a failed constructor from yielding a non-nil interface around a nil pointer.
func nonNil[T objectstore.Store](s T, err error) (objectstore.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
