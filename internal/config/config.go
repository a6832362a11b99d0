// Package config loads coin-ingest settings from an optional YAML file and
// the environment using cleanenv. Environment variables override the file.
// A .env file (or DOTENV_PATH) is loaded first and never overrides variables
// that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Sternrassler/coin-ingest/pkg/cache"
	"github.com/Sternrassler/coin-ingest/pkg/client"
	"github.com/Sternrassler/coin-ingest/pkg/extractor"
	"github.com/Sternrassler/coin-ingest/pkg/logging"
	"github.com/Sternrassler/coin-ingest/pkg/objectstore/azureblob"
	"github.com/Sternrassler/coin-ingest/pkg/objectstore/gcsstore"
	"github.com/Sternrassler/coin-ingest/pkg/objectstore/providers"
	"github.com/Sternrassler/coin-ingest/pkg/objectstore/s3store"
)

// Config is the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Source    SourceConfig    `yaml:"source"`
	HTTP      HTTPConfig      `yaml:"http"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Server    ServerConfig    `yaml:"server"`
}

// LogConfig selects the zerolog level and console output.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"` // debug|info|warn|error
	Pretty bool   `yaml:"pretty" env:"LOG_PRETTY" env-default:"false"`
}

// SourceConfig describes the CoinGecko endpoint to extract. VsCurrency and
// PerPage only apply to coins/markets.
type SourceConfig struct {
	BaseURL      string `yaml:"base_url" env:"COINGECKO_BASE_URL" env-default:"https://api.coingecko.com/api/v3/"`
	Endpoint     string `yaml:"endpoint" env:"COINGECKO_ENDPOINT" env-default:"coins/list"`
	APIKey       string `yaml:"api_key" env:"COINGECKO_API_KEY"`
	APIKeyHeader string `yaml:"api_key_header" env:"COINGECKO_API_KEY_HEADER" env-default:"x-cg-demo-api-key"`
	VsCurrency   string `yaml:"vs_currency" env:"COINGECKO_VS_CURRENCY" env-default:"usd"`
	PerPage      int    `yaml:"per_page" env:"COINGECKO_PER_PAGE" env-default:"250"`
}

// HTTPConfig tunes the transport. MaxAttempts 1 disables retries.
type HTTPConfig struct {
	UserAgent      string        `yaml:"user_agent" env:"HTTP_USER_AGENT" env-default:"coin-ingest/1.0"`
	Timeout        time.Duration `yaml:"timeout" env:"HTTP_TIMEOUT" env-default:"30s"`
	MaxAttempts    int           `yaml:"max_attempts" env:"HTTP_MAX_ATTEMPTS" env-default:"1"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env-default:"1s"`
	MaxBackoff     time.Duration `yaml:"max_backoff" env-default:"30s"`
}

// ExtractorConfig holds the failure policy and page limit (0 = unlimited).
type ExtractorConfig struct {
	Policy   string `yaml:"policy" env:"EXTRACT_POLICY" env-default:"best-effort"` // best-effort|fail-fast
	MaxPages int    `yaml:"max_pages" env:"EXTRACT_MAX_PAGES" env-default:"0"`
}

// RedisConfig enables the response cache when Addr is set. The TTL fields
// feed cache.Policy: DefaultTTL applies to responses without Cache-Control or
// Expires, Revalidate keeps expired entries with an ETag for conditional requests.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`

	DefaultTTL time.Duration `yaml:"default_ttl" env:"CACHE_DEFAULT_TTL" env-default:"5m"`
	MaxTTL     time.Duration `yaml:"max_ttl" env:"CACHE_MAX_TTL" env-default:"24h"`
	Revalidate time.Duration `yaml:"revalidate" env:"CACHE_REVALIDATE" env-default:"1h"`
}

// StorageConfig selects the object store provider. Uploads land under
// {Layer}/{source}/{surname}/ in Bucket (the container on Azure).
type StorageConfig struct {
	Provider string `yaml:"provider" env:"STORAGE_PROVIDER" env-default:"azure"` // azure|s3|gcs|local
	Bucket   string `yaml:"bucket" env:"STORAGE_BUCKET" env-default:"airflow-datawarehouse"`
	Layer    string `yaml:"layer" env:"STORAGE_LAYER" env-default:"Bronze"`
	TempDir  string `yaml:"temp_dir" env:"STORAGE_TEMP_DIR"`

	AWS   AWSConfig   `yaml:"aws"`
	Azure AzureConfig `yaml:"azure"`
	GCS   GCSConfig   `yaml:"gcs"`
	Local LocalConfig `yaml:"local"`
}

// AWSConfig holds S3 credentials. Endpoint targets LocalStack or another
// S3-compatible service.
type AWSConfig struct {
	AccessKeyID     string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
	Endpoint        string `yaml:"endpoint" env:"AWS_S3_ENDPOINT"`
}

// AzureConfig holds the storage account connection string.
type AzureConfig struct {
	ConnectionString string `yaml:"connection_string" env:"AZURE_STORAGE_CONNECTION_STRING"`
}

// GCSConfig holds GCS credentials; Endpoint targets an emulator.
type GCSConfig struct {
	CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
	Endpoint        string `yaml:"endpoint" env:"GCS_ENDPOINT"`
}

// LocalConfig roots the filesystem store.
type LocalConfig struct {
	Root string `yaml:"root" env:"LOCAL_STORAGE_ROOT" env-default:"./data"`
}

// SchedulerConfig sets the interval between pipeline runs in schedule mode.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval" env:"SCHEDULE_INTERVAL" env-default:"24h"`
}

// ServerConfig configures the health and metrics server in schedule mode.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"5s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

// Load reads path (or $CONFIG_PATH when path is empty) and then the environment.
// With neither a file nor env vars the defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	if err := loadDotenv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotenv() error {
	path := os.Getenv("DOTENV_PATH")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate checks cross-field constraints cleanenv cannot express.
func (c *Config) Validate() error {
	var problems []string

	if _, err := extractor.ParsePolicy(c.Extractor.Policy); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Extractor.MaxPages < 0 {
		problems = append(problems, fmt.Sprintf("extractor.max_pages must be >= 0 (got %d)", c.Extractor.MaxPages))
	}
	switch strings.ToLower(c.Storage.Provider) {
	case providers.S3, providers.Azure, providers.GCS, providers.Local:
	default:
		problems = append(problems, fmt.Sprintf("unknown storage.provider %q", c.Storage.Provider))
	}
	if c.Storage.Layer == "" {
		problems = append(problems, "storage.layer is required")
	}
	if c.HTTP.Timeout <= 0 {
		problems = append(problems, "http.timeout must be > 0")
	}
	if c.HTTP.MaxAttempts < 1 {
		problems = append(problems, fmt.Sprintf("http.max_attempts must be >= 1 (got %d)", c.HTTP.MaxAttempts))
	}
	if c.Scheduler.Interval <= 0 {
		problems = append(problems, "scheduler.interval must be > 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.Log.Level),
		Pretty: c.Log.Pretty,
		Output: os.Stderr,
	}
}

// ClientConfig returns the HTTP transport settings without the Redis client.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.HTTP.UserAgent)
	cfg.Timeout = c.HTTP.Timeout
	cfg.APIKey = c.Source.APIKey
	cfg.APIKeyHeader = c.Source.APIKeyHeader
	cfg.Retry = client.RetryConfig{
		MaxAttempts:       c.HTTP.MaxAttempts,
		InitialBackoff:    c.HTTP.InitialBackoff,
		MaxBackoff:        c.HTTP.MaxBackoff,
		BackoffMultiplier: 2.0,
	}
	cfg.CachePolicy = cache.Policy{
		DefaultTTL: c.Redis.DefaultTTL,
		MaxTTL:     c.Redis.MaxTTL,
		Revalidate: c.Redis.Revalidate,
	}
	return cfg
}

// ExtractorConfig returns the extraction loop settings. Validate has already checked the policy.
func (c *Config) ExtractorConfig() extractor.Config {
	policy, _ := extractor.ParsePolicy(c.Extractor.Policy)
	return extractor.Config{Policy: policy, MaxPages: c.Extractor.MaxPages}
}

// StoreConfig returns the object store selection.
func (c *Config) StoreConfig() providers.Config {
	return providers.Config{
		Provider: c.Storage.Provider,
		Bucket:   c.Storage.Bucket,
		S3: s3store.Config{
			Region:          c.Storage.AWS.Region,
			AccessKeyID:     c.Storage.AWS.AccessKeyID,
			SecretAccessKey: c.Storage.AWS.SecretAccessKey,
			Endpoint:        c.Storage.AWS.Endpoint,
		},
		Azure: azureblob.Config{ConnectionString: c.Storage.Azure.ConnectionString},
		GCS: gcsstore.Config{
			CredentialsFile: c.Storage.GCS.CredentialsFile,
			Endpoint:        c.Storage.GCS.Endpoint,
		},
		LocalRoot: c.Storage.Local.Root,
	}
}
