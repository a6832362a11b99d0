package extractor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_pages_total",
		Help: "Pages fetched and persisted by source",
	}, []string{"source"})

	writeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_artifact_write_failures_total",
		Help: "Artifact writes that failed by source",
	}, []string{"source"})

	extractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_extractions_total",
		Help: "Extraction runs by source and outcome",
	}, []string{"source", "outcome"})
)
