package cache

import (
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces all cache keys in Redis.
const keyPrefix = "ingest:http"

// Key identifies a cached response by request URL and query parameters.
type Key struct {
	// URL is the request URL without query string.
	URL string

	// QueryParams are the merged static and pagination parameters.
	QueryParams url.Values
}

// String generates a deterministic cache key.
//
// Format: ingest:http:<url>:param1=val1:param2=val2
//
// Example:
//
//	ingest:http:https://api.coingecko.com/api/v3/coins/list:include_platform=true
func (k Key) String() string {
	parts := []string{keyPrefix}

	if u := strings.TrimRight(k.URL, "/"); u != "" {
		parts = append(parts, u)
	}

	if len(k.QueryParams) > 0 {
		names := make([]string, 0, len(k.QueryParams))
		for name := range k.QueryParams {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			values := append([]string(nil), k.QueryParams[name]...)
			sort.Strings(values)
			parts = append(parts, name+"="+strings.Join(values, ","))
		}
	}

	return strings.Join(parts, ":")
}
