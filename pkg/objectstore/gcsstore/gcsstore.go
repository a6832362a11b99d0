// Package gcsstore implements objectstore.Store on Google Cloud Storage.
package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/Sternrassler/coin-ingest/pkg/objectstore"
)

const provider = "gcs"

// Config holds GCS connection settings.
type Config struct {
	Bucket string

	// CredentialsFile points to a service account key. Empty uses application default credentials.
	CredentialsFile string

	// Endpoint targets an emulator; authentication is disabled when set.
	Endpoint string
}

// Store is a GCS-backed objectstore.Store.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	logger zerolog.Logger
}

// New creates a storage client for cfg.Bucket.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs: missing required setting: bucket")
	}

	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "":
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}

	return &Store{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		logger: logger.With().Str("component", "gcsstore").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Upload copies the local file to folder/<basename>.
func (s *Store) Upload(ctx context.Context, localPath, folder string) (string, error) {
	f, err := objectstore.OpenLocal(provider, localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := objectstore.Key(folder, localPath)
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return "", objectstore.Wrap(provider, "upload", key, err, Classify)
	}
	if err := w.Close(); err != nil {
		return "", objectstore.Wrap(provider, "upload", key, err, Classify)
	}

	s.logger.Debug().Str("key", key).Msg("Object uploaded")
	return key, nil
}

// Download reads the whole object.
func (s *Store) Download(ctx context.Context, key, localPath string) ([]byte, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, objectstore.Wrap(provider, "download", key, err, Classify)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, objectstore.Wrap(provider, "download", key, err, Classify)
	}
	if err := objectstore.SaveLocal(provider, key, localPath, data); err != nil {
		return nil, err
	}
	return data, nil
}

// List iterates every object under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]objectstore.Object, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	var objects []objectstore.Object
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, objectstore.Wrap(provider, "list", prefix, err, Classify)
		}
		objects = append(objects, objectstore.Object{
			Key:          attrs.Name,
			Size:         attrs.Size,
			LastModified: attrs.Updated,
			ETag:         attrs.Etag,
		})
	}
	return objects, nil
}

// Classify maps storage sentinels and googleapi status codes to object store error kinds.
func Classify(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return objectstore.ErrNotFound
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return objectstore.ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return objectstore.ErrAuth
		}
	}
	return objectstore.ErrOperationFailed
}
