// Package client provides the HTTP transport used by the extraction loop:
// one JSON GET per call, error classification, optional bounded retry and an
// optional Redis response cache.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/coin-ingest/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for source API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_requests_total",
		Help: "Total source API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_request_duration_seconds",
		Help:    "Source API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_errors_total",
		Help: "Total source API errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// UserAgent is sent on every request.
	UserAgent string

	// Timeout bounds one HTTP round trip.
	Timeout time.Duration

	// APIKey is sent in APIKeyHeader when set (CoinGecko demo/pro keys).
	APIKey       string
	APIKeyHeader string

	Retry RetryConfig

	// Redis enables the conditional-request response cache when non-nil.
	Redis *redis.Client

	// CachePolicy controls entry freshness. Zero selects cache.DefaultPolicy.
	CachePolicy cache.Policy
}

// DefaultConfig returns a configuration without cache and without retries.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:    userAgent,
		Timeout:      30 * time.Second,
		APIKeyHeader: "x-cg-demo-api-key",
		Retry:        DefaultRetryConfig(),
	}
}

// Client is a session-scoped JSON GET transport.
type Client struct {
	mu         sync.Mutex
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// New creates a client. The session is not open until Open is called.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if cfg.APIKey != "" && cfg.APIKeyHeader == "" {
		return nil, fmt.Errorf("api key header is required when an api key is set")
	}

	c := &Client{
		config: cfg,
		logger: logger.With().Str("component", "http-client").Logger(),
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis, cfg.CachePolicy)
	}
	return c, nil
}

// Open starts a session. Calling Open on an open session is a no-op.
func (c *Client) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.config.Timeout}
	}
	return nil
}

// Close ends the session and releases idle connections.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
		c.httpClient = nil
	}
	return nil
}

// SetHTTPClient replaces the underlying HTTP client and opens the session (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.httpClient = client
}

func (c *Client) session() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpClient == nil {
		return nil, ErrSessionClosed
	}
	return c.httpClient, nil
}

// Fetch issues one GET against rawURL with params added to its query string
// and returns the JSON-decoded body, numbers kept as json.Number.
// An empty body yields (nil, nil). Non-2xx answers are returned as *APIError.
func (c *Client) Fetch(ctx context.Context, rawURL string, params url.Values) (any, error) {
	httpClient, err := c.session()
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	query := u.Query()
	for name, values := range params {
		query[name] = append([]string(nil), values...)
	}
	u.RawQuery = query.Encode()

	cacheKey := cache.Key{URL: u.Scheme + "://" + u.Host + u.Path, QueryParams: query}

	var body []byte
	err = retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		var attemptErr error
		body, attemptErr = c.do(ctx, httpClient, u, cacheKey)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}

	return decodeBody(body)
}

// do performs one attempt and returns the raw success body.
func (c *Client) do(ctx context.Context, httpClient *http.Client, u *url.URL, cacheKey cache.Key) ([]byte, error) {
	endpoint := u.Path
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	cached := c.cachedEntry(ctx, cacheKey)
	if cached.Revalidatable() {
		cached.SetValidators(req.Header)
		c.logger.Debug().Str("endpoint", endpoint).Str("etag", cached.ETag).Msg("Making conditional request")
	}

	c.logger.Debug().Str("endpoint", endpoint).Str("query", u.RawQuery).Msg("Executing source request")

	resp, err := httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		cache.NotModifiedResponses.Inc()
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		if err := c.cache.Refresh(ctx, cacheKey, cached, resp.Header); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to refresh cache entry")
		}
		return cached.Data, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errClass := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Source request error")
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, ErrorClass: errClass, Message: resp.Status}
	}

	if c.cache != nil && resp.StatusCode == http.StatusOK {
		entry, storable, err := c.cache.Policy().NewEntry(resp, time.Now())
		if err != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
		}
		if storable {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
			}
		}
		return entry.Data, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
	}
	return body, nil
}

func (c *Client) cachedEntry(ctx context.Context, key cache.Key) *cache.Entry {
	if c.cache == nil {
		return nil
	}
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
		}
		return nil
	}
	return entry
}

// classifyStatus categorizes a non-success HTTP status.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		// 1xx/3xx other than a served 304
		return ErrorClassClient
	}
}

func decodeBody(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return v, nil
}
