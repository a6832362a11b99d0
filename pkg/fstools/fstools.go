// Package fstools holds the temporary directory and storage path helpers
// the pipeline stages artifacts with.
package fstools

import (
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/rs/zerolog"
)

// CreateTempDir creates a new directory under parent (os.TempDir when empty)
// whose name ends in "_" + name.
func CreateTempDir(parent, name string, logger zerolog.Logger) (string, error) {
	dir, err := os.MkdirTemp(parent, "*_"+name)
	if err != nil {
		return "", fmt.Errorf("create temp dir for %s: %w", name, err)
	}
	logger.Info().Str("dir", dir).Msg("Created temporary directory")
	return dir, nil
}

// RemoveTempDir deletes dir and everything in it. Failures are logged, never returned.
func RemoveTempDir(dir string, logger zerolog.Logger) {
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("Failed to remove temporary directory")
		return
	}
	logger.Info().Str("dir", dir).Msg("Removed temporary directory")
}

// ListDir returns the names of the regular files in dir, sorted.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// StoragePath returns "{layer}/{sourceName}/{sourceSurname}".
func StoragePath(layer, sourceName, sourceSurname string) string {
	return path.Join(layer, sourceName, sourceSurname)
}
