package cache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"
)

func TestPolicy_Lifetime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := Policy{DefaultTTL: 5 * time.Minute, MaxTTL: time.Hour}

	tests := []struct {
		name      string
		header    http.Header
		want      time.Duration
		wantStore bool
	}{
		{
			name:      "coingecko max-age",
			header:    http.Header{"Cache-Control": {"public, max-age=30"}},
			want:      30 * time.Second,
			wantStore: true,
		},
		{
			name: "max-age wins over Expires",
			header: http.Header{
				"Cache-Control": {"max-age=60"},
				"Expires":       {now.Add(10 * time.Minute).Format(http.TimeFormat)},
			},
			want:      time.Minute,
			wantStore: true,
		},
		{
			name:      "Age is subtracted",
			header:    http.Header{"Cache-Control": {"max-age=60"}, "Age": {"45"}},
			want:      15 * time.Second,
			wantStore: true,
		},
		{
			name: "Expires relative to Date",
			header: http.Header{
				"Date":    {now.Add(-time.Hour).Format(http.TimeFormat)},
				"Expires": {now.Add(-time.Hour + 2*time.Minute).Format(http.TimeFormat)},
			},
			want:      2 * time.Minute,
			wantStore: true,
		},
		{
			name:      "Expires without Date",
			header:    http.Header{"Expires": {now.Add(3 * time.Minute).Format(http.TimeFormat)}},
			want:      3 * time.Minute,
			wantStore: true,
		},
		{
			name:      "invalid Expires is already stale",
			header:    http.Header{"Expires": {"0"}},
			want:      0,
			wantStore: true,
		},
		{
			name:      "no freshness headers",
			header:    http.Header{},
			want:      5 * time.Minute,
			wantStore: true,
		},
		{
			name:      "capped by MaxTTL",
			header:    http.Header{"Cache-Control": {"max-age=86400"}},
			want:      time.Hour,
			wantStore: true,
		},
		{
			name:      "no-cache stores for revalidation only",
			header:    http.Header{"Cache-Control": {"no-cache, max-age=600"}},
			want:      0,
			wantStore: true,
		},
		{
			name:      "no-store",
			header:    http.Header{"Cache-Control": {"No-Store"}},
			want:      0,
			wantStore: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, store := p.Lifetime(tt.header, now)
			if got != tt.want || store != tt.wantStore {
				t.Errorf("Lifetime() = (%v, %v), want (%v, %v)", got, store, tt.want, tt.wantStore)
			}
		})
	}
}

func TestPolicy_NewEntry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lastMod := now.Add(-time.Hour)
	resp := &http.Response{
		StatusCode: 200,
		Header: http.Header{
			"Cache-Control": {"public, max-age=120"},
			"Last-Modified": {lastMod.Format(http.TimeFormat)},
			"Etag":          {`W/"abc123"`},
		},
		Body: io.NopCloser(bytes.NewReader([]byte(`[{"id":"bitcoin"}]`))),
	}

	entry, storable, err := DefaultPolicy().NewEntry(resp, now)
	if err != nil {
		t.Fatalf("NewEntry() failed: %v", err)
	}
	if !storable {
		t.Error("response should be storable")
	}

	body, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(body, entry.Data) {
		t.Errorf("restored body = %q, entry data = %q", body, entry.Data)
	}
	if entry.ETag != `W/"abc123"` {
		t.Errorf("ETag = %q", entry.ETag)
	}
	if !entry.Expires.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("Expires = %v, want %v", entry.Expires, now.Add(2*time.Minute))
	}
	if !entry.LastModified.Equal(lastMod.Truncate(time.Second)) {
		t.Errorf("LastModified = %v, want %v", entry.LastModified, lastMod)
	}
	if !entry.CachedAt.Equal(now) {
		t.Errorf("CachedAt = %v, want %v", entry.CachedAt, now)
	}
}

func TestPolicy_NewEntry_NilResponse(t *testing.T) {
	if _, _, err := DefaultPolicy().NewEntry(nil, time.Now()); err == nil {
		t.Error("NewEntry(nil) should fail")
	}
}

func TestParseCacheControl(t *testing.T) {
	got := parseCacheControl(` public, Max-Age="30" ,no-transform,`)
	want := map[string]string{"public": "", "max-age": "30", "no-transform": ""}
	if len(got) != len(want) {
		t.Fatalf("parseCacheControl() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("directive %q = %q, want %q", k, got[k], v)
		}
	}
}
