// Package metrics provides the Prometheus registry and HTTP exposition for
// coin-ingest. Metrics themselves are defined in their owning packages
// (client, cache, extractor, pipeline) to avoid circular dependencies.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer all packages register into via promauto.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ingest_requests_total{endpoint, status} (Counter): requests by endpoint and HTTP status
//   - ingest_request_duration_seconds{endpoint} (Histogram): request duration by endpoint
//   - ingest_errors_total{class} (Counter): errors by class (client, server, network)
//   - ingest_retries_total{error_class} (Counter): retry attempts
//   - ingest_retry_exhausted_total{error_class} (Counter): requests that exhausted retries
//
// Cache Metrics (pkg/cache):
//   - ingest_cache_hits_total{freshness} (Counter): fresh or stale-but-revalidatable hits
//   - ingest_cache_misses_total (Counter)
//   - ingest_304_responses_total (Counter)
//   - ingest_cache_errors_total{operation} (Counter)
//
// Extraction Metrics (pkg/extractor):
//   - ingest_pages_total{source} (Counter): pages fetched and persisted
//   - ingest_artifact_write_failures_total{source} (Counter)
//   - ingest_extractions_total{source, outcome} (Counter): runs by outcome (exhausted, truncated, failed)
//
// Pipeline Metrics (internal/pipeline):
//   - ingest_pipeline_step_duration_seconds{step} (Histogram)
//   - ingest_pipeline_runs_total{status} (Counter)
//   - ingest_uploads_total{provider, status} (Counter)
//
// Example Prometheus Queries:
//
//   # Truncated extractions over the last day
//   increase(ingest_extractions_total{outcome="truncated"}[1d])
//
//   # Failed pipeline runs
//   rate(ingest_pipeline_runs_total{status="failed"}[1h])
