// Package azureblob implements objectstore.Store on Azure Blob Storage,
// including the Azurite emulator.
package azureblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/coin-ingest/pkg/objectstore"
)

const provider = "azure"

// Config holds Azure Blob connection settings.
type Config struct {
	Container        string
	ConnectionString string
}

// Store is an Azure Blob backed objectstore.Store.
type Store struct {
	client    *azblob.Client
	container string
	logger    zerolog.Logger
}

// New creates a client from the storage account connection string.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("azure: missing required setting: AZURE_STORAGE_CONNECTION_STRING")
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("azure: missing required setting: container")
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("azure: create client: %w", err)
	}

	return &Store{
		client:    client,
		container: cfg.Container,
		logger:    logger.With().Str("component", "azureblob").Str("container", cfg.Container).Logger(),
	}, nil
}

// Upload writes the local file to folder/<basename>, replacing an existing blob.
func (s *Store) Upload(ctx context.Context, localPath, folder string) (string, error) {
	f, err := objectstore.OpenLocal(provider, localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := objectstore.Key(folder, localPath)
	if _, err := s.client.UploadFile(ctx, s.container, key, f, nil); err != nil {
		return "", objectstore.Wrap(provider, "upload", key, err, Classify)
	}

	s.logger.Debug().Str("key", key).Msg("Blob uploaded")
	return key, nil
}

// Download reads the whole blob.
func (s *Store) Download(ctx context.Context, key, localPath string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
	if err != nil {
		return nil, objectstore.Wrap(provider, "download", key, err, Classify)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, objectstore.Wrap(provider, "download", key, err, Classify)
	}
	if err := objectstore.SaveLocal(provider, key, localPath, data); err != nil {
		return nil, err
	}
	return data, nil
}

// List pages through every blob whose name starts with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]objectstore.Object, error) {
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
		Prefix: to.Ptr(prefix),
	})

	var objects []objectstore.Object
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, objectstore.Wrap(provider, "list", prefix, err, Classify)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			obj := objectstore.Object{}
			if item.Name != nil {
				obj.Key = *item.Name
			}
			if p := item.Properties; p != nil {
				if p.ContentLength != nil {
					obj.Size = *p.ContentLength
				}
				if p.LastModified != nil {
					obj.LastModified = *p.LastModified
				}
				if p.ETag != nil {
					obj.ETag = strings.Trim(string(*p.ETag), `"`)
				}
			}
			objects = append(objects, obj)
		}
	}
	return objects, nil
}

// Classify maps Azure storage error codes and HTTP statuses to object store error kinds.
func Classify(err error) error {
	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound):
		return objectstore.ErrNotFound
	case bloberror.HasCode(err,
		bloberror.AuthenticationFailed,
		bloberror.AuthorizationFailure,
		bloberror.AuthorizationPermissionMismatch,
		bloberror.InsufficientAccountPermissions):
		return objectstore.ErrAuth
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return objectstore.ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return objectstore.ErrAuth
		}
	}
	return objectstore.ErrOperationFailed
}
