package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTestRedis connects to a local Redis on DB 15 and skips when none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func newOpenClient(t *testing.T, cfg Config) *Client {
	t.Helper()

	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := c.Open(); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		errorMsg string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("coin-ingest-test/1.0"),
		},
		{
			name:     "empty user agent",
			config:   Config{Timeout: time.Second},
			errorMsg: "user-agent is required",
		},
		{
			name:     "zero timeout",
			config:   Config{UserAgent: "x"},
			errorMsg: "timeout must be > 0 (got 0s)",
		},
		{
			name:     "api key without header",
			config:   Config{UserAgent: "x", Timeout: time.Second, APIKey: "secret"},
			errorMsg: "api key header is required when an api key is set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config, zerolog.Nop())

			if tt.errorMsg != "" {
				if err == nil || err.Error() != tt.errorMsg {
					t.Errorf("New() error = %v, want %q", err, tt.errorMsg)
				}
				return
			}
			if err != nil || c == nil {
				t.Errorf("New() = %v, %v; want client", c, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("coin-ingest/1.0")

	if cfg.UserAgent != "coin-ingest/1.0" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.Timeout <= 0 {
		t.Errorf("Timeout = %v, want > 0", cfg.Timeout)
	}
	if cfg.Retry.MaxAttempts != 1 {
		t.Errorf("Retry.MaxAttempts = %d, want 1", cfg.Retry.MaxAttempts)
	}
	if cfg.Redis != nil {
		t.Error("Redis should be nil by default")
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{404, ErrorClassClient},
		{401, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.expected {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestFetch_SessionClosed(t *testing.T) {
	c, err := New(DefaultConfig("test/1.0"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Fetch(context.Background(), "http://127.0.0.1/", nil); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Fetch before Open: err = %v, want ErrSessionClosed", err)
	}

	c.Open()
	c.Close()
	if _, err := c.Fetch(context.Background(), "http://127.0.0.1/", nil); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Fetch after Close: err = %v, want ErrSessionClosed", err)
	}
}

func TestFetch_HeadersAndQuery(t *testing.T) {
	var gotUA, gotAccept, gotKey string
	var gotQuery url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotKey = r.Header.Get("x-cg-demo-api-key")
		gotQuery = r.URL.Query()
		w.Write([]byte(`[{"id":"bitcoin"}]`))
	}))
	defer server.Close()

	cfg := DefaultConfig("coin-ingest-test/1.0")
	cfg.APIKey = "demo-key"
	c := newOpenClient(t, cfg)

	params := url.Values{"include_platform": {"true"}, "page": {"2"}}
	if _, err := c.Fetch(context.Background(), server.URL+"/coins/list?static=1", params); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	if gotUA != "coin-ingest-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotKey != "demo-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	want := url.Values{"static": {"1"}, "include_platform": {"true"}, "page": {"2"}}
	if gotQuery.Encode() != want.Encode() {
		t.Errorf("query = %q, want %q", gotQuery.Encode(), want.Encode())
	}
}

func TestFetch_DecodesJSONWithNumbers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"bitcoin","market_cap":1234567890123456789}]`))
	}))
	defer server.Close()

	c := newOpenClient(t, DefaultConfig("test/1.0"))

	body, err := c.Fetch(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}

	items, ok := body.([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("body = %#v, want one-element array", body)
	}
	cap := items[0].(map[string]any)["market_cap"]
	if n, ok := cap.(json.Number); !ok || n.String() != "1234567890123456789" {
		t.Errorf("market_cap = %#v, want exact json.Number", cap)
	}
}

func TestFetch_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newOpenClient(t, DefaultConfig("test/1.0"))

	body, err := c.Fetch(context.Background(), server.URL, nil)
	if err != nil || body != nil {
		t.Errorf("Fetch() = %v, %v; want nil, nil", body, err)
	}
}

func TestFetch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	c := newOpenClient(t, DefaultConfig("test/1.0"))

	if _, err := c.Fetch(context.Background(), server.URL, nil); !errors.Is(err, ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestFetch_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		class  ErrorClass
	}{
		{http.StatusNotFound, ErrorClassClient},
		{http.StatusTooManyRequests, ErrorClassRateLimit},
		{http.StatusInternalServerError, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			c := newOpenClient(t, DefaultConfig("test/1.0"))

			_, err := c.Fetch(context.Background(), server.URL, nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.ErrorClass != tt.class {
				t.Errorf("APIError = %+v, want status %d class %s", apiErr, tt.status, tt.class)
			}
		})
	}
}

func TestFetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	c := newOpenClient(t, DefaultConfig("test/1.0"))

	_, err := c.Fetch(context.Background(), addr, nil)
	if classOf(err) != ErrorClassNetwork {
		t.Errorf("err = %v, want network class", err)
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	cfg := DefaultConfig("test/1.0")
	cfg.Retry = fastRetry(3)
	c := newOpenClient(t, cfg)

	if _, err := c.Fetch(context.Background(), server.URL, nil); err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetch_NotModifiedServedFromCache(t *testing.T) {
	redisClient := setupTestRedis(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.Header().Set("Expires", time.Now().Add(10*time.Minute).Format(http.TimeFormat))
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		w.Write([]byte(`[{"id":"bitcoin"}]`))
	}))
	defer server.Close()

	cfg := DefaultConfig("test/1.0")
	cfg.Redis = redisClient
	c := newOpenClient(t, cfg)

	first, err := c.Fetch(context.Background(), server.URL+"/coins/list", nil)
	if err != nil {
		t.Fatalf("first Fetch() failed: %v", err)
	}
	second, err := c.Fetch(context.Background(), server.URL+"/coins/list", nil)
	if err != nil {
		t.Fatalf("second Fetch() failed: %v", err)
	}

	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("cached body %s != original %s", b, a)
	}
}

func TestFetch_ExpiredEntryStillRevalidated(t *testing.T) {
	redisClient := setupTestRedis(t)

	var conditional atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=0")
		if r.Header.Get("If-None-Match") == `"m1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"m1"`)
		w.Write([]byte(`[{"id":"bitcoin","current_price":67000}]`))
	}))
	defer server.Close()

	cfg := DefaultConfig("test/1.0")
	cfg.Redis = redisClient
	c := newOpenClient(t, cfg)

	if _, err := c.Fetch(context.Background(), server.URL+"/coins/markets", nil); err != nil {
		t.Fatalf("first Fetch() failed: %v", err)
	}
	body, err := c.Fetch(context.Background(), server.URL+"/coins/markets", nil)
	if err != nil {
		t.Fatalf("second Fetch() failed: %v", err)
	}

	if conditional.Load() != 1 {
		t.Errorf("conditional requests = %d, want 1", conditional.Load())
	}
	rows, ok := body.([]any)
	if !ok || len(rows) != 1 {
		t.Errorf("body = %#v, want the cached page", body)
	}
}
