package extractor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TimestampFormat is the UTC ISO 8601 layout used in artifact names.
const TimestampFormat = "2006-01-02T15:04:05.000000-07:00"

// ArtifactName returns the file name for one page.
func ArtifactName(sourceName, surname string, at time.Time, page int) string {
	return fmt.Sprintf("%s_%s_%s_%03d.json", sourceName, surname, at.UTC().Format(TimestampFormat), page)
}

// writeArtifact writes body as four-space indented JSON. Existing files are
// never overwritten, and a failed write leaves no file behind.
func writeArtifact(path string, body any) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if err != nil {
			os.Remove(path)
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return nil
}

// isEmpty reports whether a decoded body means "no more data":
// absent, null, false, zero, "", {} or [].
func isEmpty(body any) bool {
	switch v := body.(type) {
	case nil:
		return true
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case string:
		return v == ""
	case bool:
		return !v
	case json.Number:
		f, err := v.Float64()
		return err == nil && f == 0
	case float64:
		return v == 0
	default:
		return false
	}
}
