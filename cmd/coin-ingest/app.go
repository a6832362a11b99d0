package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/coin-ingest/internal/config"
	"github.com/Sternrassler/coin-ingest/internal/pipeline"
	"github.com/Sternrassler/coin-ingest/pkg/client"
	"github.com/Sternrassler/coin-ingest/pkg/extractor"
	"github.com/Sternrassler/coin-ingest/pkg/logging"
	"github.com/Sternrassler/coin-ingest/pkg/objectstore"
	"github.com/Sternrassler/coin-ingest/pkg/objectstore/providers"
	"github.com/Sternrassler/coin-ingest/pkg/sources/coingecko"
)

// app wires the configured components together.
type app struct {
	cfg      *config.Config
	redis    *redis.Client
	store    objectstore.Store
	pipeline *pipeline.Pipeline
	logger   zerolog.Logger
}

// Components add their own component field and take the root logger.

// openStore creates the configured object store.
func openStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	store, err := providers.Open(ctx, cfg.StoreConfig(), log.Logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Provider, err)
	}
	return store, nil
}

// closeStore releases stores that hold a client, such as GCS.
func closeStore(store objectstore.Store, logger zerolog.Logger) {
	c, ok := store.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close object store")
	}
}

// newEndpoint resolves the configured CoinGecko endpoint.
func newEndpoint(cfg *config.Config) (coingecko.Endpoint, error) {
	if cfg.Source.Endpoint == "coins/markets" {
		return coingecko.NewCoinsMarkets(cfg.Source.VsCurrency, cfg.Source.PerPage)
	}
	return coingecko.Lookup(cfg.Source.Endpoint)
}

// newApp builds the pipeline for the configured endpoint and store.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.NewLogger("app")
	a := &app{cfg: cfg, logger: logger}

	clientCfg := cfg.ClientConfig()
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Response cache enabled")
		clientCfg.Redis = a.redis
	}

	transport, err := client.New(clientCfg, log.Logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create http client: %w", err)
	}

	endpoint, err := newEndpoint(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	job, err := coingecko.NewJob(endpoint, cfg.Source.BaseURL, os.TempDir())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build job: %w", err)
	}

	a.store, err = openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	ext := extractor.New(transport, endpoint, cfg.ExtractorConfig(), log.Logger)
	a.pipeline = pipeline.New(ext, endpoint.Name(), job, a.store, pipeline.Config{
		Layer:      cfg.Storage.Layer,
		TempParent: cfg.Storage.TempDir,
		Provider:   strings.ToLower(cfg.Storage.Provider),
	}, log.Logger)

	return a, nil
}

// Close releases the Redis connection and any closable store.
func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.store != nil {
		closeStore(a.store, a.logger)
	}
}
