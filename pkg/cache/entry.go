package cache

import (
	"net/http"
	"time"
)

// Entry represents a cached source response.
type Entry struct {
	// Data is the raw response body.
	Data []byte `json:"data"`

	// ETag for conditional requests (If-None-Match).
	ETag string `json:"etag"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// LastModified from the Last-Modified header, for If-Modified-Since.
	LastModified time.Time `json:"last_modified"`

	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`

	// CachedAt is when the response was stored.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Revalidatable reports whether the entry carries an ETag or Last-Modified
// validator. A nil entry has none.
func (e *Entry) Revalidatable() bool {
	if e == nil {
		return false
	}
	return e.ETag != "" || !e.LastModified.IsZero()
}

// SetValidators adds If-None-Match, or If-Modified-Since when the entry has
// no ETag, to the outgoing request headers.
func (e *Entry) SetValidators(h http.Header) {
	if e == nil || h == nil {
		return
	}
	if e.ETag != "" {
		h.Set("If-None-Match", e.ETag)
	} else if !e.LastModified.IsZero() {
		h.Set("If-Modified-Since", e.LastModified.UTC().Format(http.TimeFormat))
	}
}
