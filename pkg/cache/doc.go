// Package cache provides a Redis-backed response cache for source API GETs.
//
// The transport in pkg/client consults the cache when a Redis client is
// configured. A Policy derives each entry's freshness from Cache-Control
// max-age (CoinGecko's primary signal), then Expires relative to Date, then
// a default. Entries that carry an ETag or Last-Modified validator outlive
// their freshness by Policy.Revalidate, so a page requested again after
// expiry is still sent as a conditional request; a 304 Not Modified answer is
// served from the cached body and renews the entry.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, cache.DefaultPolicy())
//
//	key := cache.Key{
//		URL:         "https://api.coingecko.com/api/v3/coins/list",
//		QueryParams: url.Values{"include_platform": []string{"true"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the source
//	}
//
// # Conditional Requests
//
//	if entry.Revalidatable() {
//		entry.SetValidators(req.Header)
//	}
//	...
//	if resp.StatusCode == http.StatusNotModified {
//		err = manager.Refresh(ctx, key, entry, resp.Header)
//	}
//
// # Metrics
//
//   - ingest_cache_hits_total{freshness}
//   - ingest_cache_misses_total
//   - ingest_304_responses_total
//   - ingest_cache_errors_total{operation}
package cache
