// Package objectstore defines the cloud object store contract used by the
// ingestion pipeline. Provider implementations live in subpackages and map
// their SDK errors onto ErrNotFound, ErrAuth and ErrOperationFailed.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned for a missing key, bucket, container or local file.
	ErrNotFound = errors.New("object not found")

	// ErrAuth is returned when the provider rejects the credentials.
	ErrAuth = errors.New("object store authentication failed")

	// ErrOperationFailed is returned for every other provider failure.
	ErrOperationFailed = errors.New("object store operation failed")
)

// Store uploads, downloads and lists objects in one bucket or container.
type Store interface {
	// Upload stores the file at localPath under folder/<basename> and returns the key.
	Upload(ctx context.Context, localPath, folder string) (string, error)

	// Download returns the object content and also writes it to localPath when non-empty.
	Download(ctx context.Context, key, localPath string) ([]byte, error)

	// List returns the objects whose keys start with prefix.
	List(ctx context.Context, prefix string) ([]Object, error)
}

// Object describes one stored object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// Error is a classified provider error.
type Error struct {
	Provider string
	Op       string
	Key      string
	Kind     error
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Provider, e.Op)
	if e.Key != "" {
		msg += fmt.Sprintf(" %q", e.Key)
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the provider cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Classifier maps a provider error to one of the error kinds.
type Classifier func(err error) error

// Wrap classifies err with classify and returns it as an *Error. Nil stays nil.
func Wrap(provider, op, key string, err error, classify Classifier) error {
	if err == nil {
		return nil
	}
	var already *Error
	if errors.As(err, &already) {
		return err
	}
	kind := ErrOperationFailed
	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if !cancelled && classify != nil {
		if k := classify(err); k != nil {
			kind = k
		}
	}
	return &Error{Provider: provider, Op: op, Key: key, Kind: kind, Err: err}
}

// Key joins folder and the base name of localPath with "/".
func Key(folder, localPath string) string {
	name := filepath.Base(localPath)
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

// OpenLocal opens a file for upload; a missing file is reported as ErrNotFound.
func OpenLocal(provider, localPath string) (*os.File, error) {
	f, err := os.Open(localPath)
	if err != nil {
		kind := ErrOperationFailed
		if errors.Is(err, os.ErrNotExist) {
			kind = ErrNotFound
		}
		return nil, &Error{Provider: provider, Op: "upload", Key: localPath, Kind: kind, Err: err}
	}
	return f, nil
}

// SaveLocal writes downloaded content to localPath when it is non-empty.
func SaveLocal(provider, key, localPath string, data []byte) error {
	if localPath == "" {
		return nil
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return &Error{Provider: provider, Op: "download", Key: key, Kind: ErrOperationFailed, Err: err}
	}
	return nil
}
