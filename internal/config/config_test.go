package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/coin-ingest/pkg/cache"
	"github.com/Sternrassler/coin-ingest/pkg/extractor"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "https://api.coingecko.com/api/v3/", cfg.Source.BaseURL)
	assert.Equal(t, "coins/list", cfg.Source.Endpoint)
	assert.Equal(t, "azure", cfg.Storage.Provider)
	assert.Equal(t, "airflow-datawarehouse", cfg.Storage.Bucket)
	assert.Equal(t, "Bronze", cfg.Storage.Layer)
	assert.Equal(t, "us-east-1", cfg.Storage.AWS.Region)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 1, cfg.HTTP.MaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	ec := cfg.ExtractorConfig()
	assert.Equal(t, extractor.PolicyBestEffort, ec.Policy)
	assert.Zero(t, ec.MaxPages)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("STORAGE_PROVIDER", "s3")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIATEST")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_S3_ENDPOINT", "http://localhost:4566")
	t.Setenv("EXTRACT_POLICY", "fail-fast")
	t.Setenv("COINGECKO_API_KEY", "demo")

	cfg, err := Load("")
	require.NoError(t, err)

	sc := cfg.StoreConfig()
	assert.Equal(t, "s3", sc.Provider)
	assert.Equal(t, "AKIATEST", sc.S3.AccessKeyID)
	assert.Equal(t, "secret", sc.S3.SecretAccessKey)
	assert.Equal(t, "http://localhost:4566", sc.S3.Endpoint)
	assert.Equal(t, "us-east-1", sc.S3.Region)

	assert.Equal(t, extractor.PolicyFailFast, cfg.ExtractorConfig().Policy)

	cc := cfg.ClientConfig()
	assert.Equal(t, "demo", cc.APIKey)
	assert.Equal(t, "x-cg-demo-api-key", cc.APIKeyHeader)
	assert.Equal(t, "coin-ingest/1.0", cc.UserAgent)
}

func TestLoad_CachePolicy(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, cache.DefaultPolicy(), cfg.ClientConfig().CachePolicy)

	t.Setenv("CACHE_DEFAULT_TTL", "90s")
	t.Setenv("CACHE_MAX_TTL", "2h")
	t.Setenv("CACHE_REVALIDATE", "0s")

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, cache.Policy{DefaultTTL: 90 * time.Second, MaxTTL: 2 * time.Hour}, cfg.ClientConfig().CachePolicy)
}

func TestLoad_File(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
source:
  endpoint: coins/markets
  per_page: 100
storage:
  provider: local
  layer: Silver
  local:
    root: /var/lib/coin-ingest
scheduler:
  interval: 1h
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "coins/markets", cfg.Source.Endpoint)
	assert.Equal(t, 100, cfg.Source.PerPage)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, "Silver", cfg.Storage.Layer)
	assert.Equal(t, "/var/lib/coin-ingest", cfg.Storage.Local.Root)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, "airflow-datawarehouse", cfg.Storage.Bucket)
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  provider: gcs\n"), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gcs", cfg.Storage.Provider)
}

func TestLoad_Dotenv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("COINGECKO_VS_CURRENCY=eur\nSTORAGE_LAYER=Silver\n"), 0o644))
	t.Setenv("DOTENV_PATH", path)
	t.Setenv("STORAGE_LAYER", "Gold")
	t.Cleanup(func() { os.Unsetenv("COINGECKO_VS_CURRENCY") })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "eur", cfg.Source.VsCurrency)
	assert.Equal(t, "Gold", cfg.Storage.Layer, "already-set variables win over .env")
}

func TestLoad_DotenvMissingIsIgnored(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DOTENV_PATH", filepath.Join(t.TempDir(), "absent.env"))

	_, err := Load("")
	assert.NoError(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad policy", func(c *Config) { c.Extractor.Policy = "sometimes" }, "unknown failure policy"},
		{"negative max pages", func(c *Config) { c.Extractor.MaxPages = -1 }, "max_pages"},
		{"unknown provider", func(c *Config) { c.Storage.Provider = "ftp" }, "storage.provider"},
		{"empty layer", func(c *Config) { c.Storage.Layer = "" }, "storage.layer"},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }, "http.timeout"},
		{"zero attempts", func(c *Config) { c.HTTP.MaxAttempts = 0 }, "http.max_attempts"},
		{"zero interval", func(c *Config) { c.Scheduler.Interval = 0 }, "scheduler.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}
