// Package localstore implements objectstore.Store on a local directory.
// Keys map to paths below the root directory.
package localstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/coin-ingest/pkg/objectstore"
)

const provider = "local"

// Store keeps objects as files under a root directory.
type Store struct {
	root   string
	logger zerolog.Logger
}

// New creates the root directory if needed.
func New(root string, logger zerolog.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("local: missing required setting: root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("local: create root: %w", err)
	}
	return &Store{
		root:   root,
		logger: logger.With().Str("component", "localstore").Str("root", root).Logger(),
	}, nil
}

func (s *Store) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("empty key")
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Upload copies the local file to folder/<basename>.
func (s *Store) Upload(ctx context.Context, localPath, folder string) (string, error) {
	src, err := objectstore.OpenLocal(provider, localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	key := objectstore.Key(folder, localPath)
	dstPath, err := s.path(key)
	if err != nil {
		return "", objectstore.Wrap(provider, "upload", key, err, nil)
	}
	if err := ctx.Err(); err != nil {
		return "", objectstore.Wrap(provider, "upload", key, err, nil)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return "", objectstore.Wrap(provider, "upload", key, err, Classify)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", objectstore.Wrap(provider, "upload", key, err, Classify)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", objectstore.Wrap(provider, "upload", key, err, Classify)
	}
	if err := dst.Close(); err != nil {
		return "", objectstore.Wrap(provider, "upload", key, err, Classify)
	}

	s.logger.Debug().Str("key", key).Msg("Object stored")
	return key, nil
}

// Download reads the object file.
func (s *Store) Download(ctx context.Context, key, localPath string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, objectstore.Wrap(provider, "download", key, err, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, objectstore.Wrap(provider, "download", key, err, nil)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, objectstore.Wrap(provider, "download", key, err, Classify)
	}
	if err := objectstore.SaveLocal(provider, key, localPath, data); err != nil {
		return nil, err
	}
	return data, nil
}

// List walks the root and returns objects whose keys start with prefix, sorted by key.
func (s *Store) List(ctx context.Context, prefix string) ([]objectstore.Object, error) {
	var objects []objectstore.Object
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		etag, err := fileETag(p)
		if err != nil {
			return err
		}
		objects = append(objects, objectstore.Object{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
			ETag:         etag,
		})
		return nil
	})
	if err != nil {
		return nil, objectstore.Wrap(provider, "list", prefix, err, Classify)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// fileETag is the hex MD5 of the file content, as S3 reports for single-part uploads.
func fileETag(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Classify maps filesystem errors to object store error kinds.
func Classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return objectstore.ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return objectstore.ErrAuth
	default:
		return objectstore.ErrOperationFailed
	}
}
