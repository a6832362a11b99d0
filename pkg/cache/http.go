package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Policy turns source response headers into a freshness lifetime.
//
// CoinGecko answers with "Cache-Control: public, max-age=N" next to an
// Expires header; max-age takes precedence, Expires is read relative to the
// response Date.
type Policy struct {
	// DefaultTTL applies when a response carries no freshness headers.
	DefaultTTL time.Duration

	// MaxTTL caps any advertised lifetime. Zero disables the cap.
	MaxTTL time.Duration

	// Revalidate keeps an expired entry that has a validator around this long,
	// so the next fetch of the same page can still be conditional.
	Revalidate time.Duration
}

// DefaultPolicy is used when a Manager is built with a zero Policy.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 5 * time.Minute,
		MaxTTL:     24 * time.Hour,
		Revalidate: time.Hour,
	}
}

// Lifetime returns how long a response with headers h stays fresh, measured
// from now. The boolean is false when the response must not be stored.
func (p Policy) Lifetime(h http.Header, now time.Time) (time.Duration, bool) {
	directives := parseCacheControl(h.Get("Cache-Control"))
	if _, ok := directives["no-store"]; ok {
		return 0, false
	}

	_, noCache := directives["no-cache"]
	maxAge, hasMaxAge := seconds(directives["max-age"])

	var ttl time.Duration
	switch {
	case noCache:
		// stored for revalidation only
	case hasMaxAge:
		age, _ := seconds(h.Get("Age"))
		ttl = maxAge - age
	case h.Get("Expires") != "":
		// An unparsable Expires means "already expired".
		if expires, err := http.ParseTime(h.Get("Expires")); err == nil {
			date := now
			if d, err := http.ParseTime(h.Get("Date")); err == nil {
				date = d
			}
			ttl = expires.Sub(date)
		}
	default:
		ttl = p.DefaultTTL
	}

	if ttl < 0 {
		ttl = 0
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl, true
}

// NewEntry reads a successful response into an Entry and restores resp.Body
// for the caller. The boolean reports whether the entry may be stored.
func (p Policy) NewEntry(resp *http.Response, now time.Time) (*Entry, bool, error) {
	if resp == nil {
		return nil, false, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read response body: %w", err)
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	ttl, storable := p.Lifetime(resp.Header, now)

	entry := &Entry{
		Data:       body,
		ETag:       resp.Header.Get("ETag"),
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		CachedAt:   now,
		Expires:    now.Add(ttl),
	}
	if lastMod, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		entry.LastModified = lastMod
	}

	return entry, storable, nil
}

// parseCacheControl splits a Cache-Control value into lower-cased directives.
func parseCacheControl(value string) map[string]string {
	directives := make(map[string]string)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, arg, _ := strings.Cut(part, "=")
		directives[strings.ToLower(strings.TrimSpace(name))] = strings.Trim(strings.TrimSpace(arg), `"`)
	}
	return directives
}

func seconds(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
