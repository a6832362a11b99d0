package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned when no usable entry exists for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned when a stored entry cannot be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager stores source responses in Redis.
//
// Fresh entries live for their freshness lifetime. Entries with a validator
// are kept for Policy.Revalidate beyond that, so a page fetched again after
// expiry still goes out as a conditional request and a 304 can reuse the body.
type Manager struct {
	redis  *redis.Client
	policy Policy
	now    func() time.Time
}

// NewManager creates a manager. A zero policy selects DefaultPolicy. It
// panics on a nil client.
func NewManager(redisClient *redis.Client, policy Policy) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}
	return &Manager{redis: redisClient, policy: policy, now: time.Now}
}

// Policy returns the freshness policy the manager applies.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Get returns the entry stored under key. A stale entry is still returned
// while it can be revalidated; callers check IsExpired.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	switch {
	case !entry.IsExpired():
		CacheHits.WithLabelValues("fresh").Inc()
	case entry.Revalidatable():
		CacheHits.WithLabelValues("stale").Inc()
	default:
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}
	return &entry, nil
}

// Set stores entry under key for its remaining lifetime plus the revalidation
// window when it has a validator. An entry with nothing left to offer is
// skipped.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	retention := entry.TTL()
	if entry.Revalidatable() {
		retention += m.policy.Revalidate
	}
	if retention <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, retention).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Refresh renews entry after the source answered 304 Not Modified, using the
// freshness headers of that answer. A 304 marked no-store drops the entry.
func (m *Manager) Refresh(ctx context.Context, key Key, entry *Entry, h http.Header) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	now := m.now()
	ttl, storable := m.policy.Lifetime(h, now)
	if !storable {
		return m.Delete(ctx, key)
	}

	entry.Expires = now.Add(ttl)
	if etag := h.Get("ETag"); etag != "" {
		entry.ETag = etag
	}
	return m.Set(ctx, key, entry)
}

// Delete removes an entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
