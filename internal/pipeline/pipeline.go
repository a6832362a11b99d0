// Package pipeline runs one ingestion job end to end: stage a temporary
// directory, extract into it, list the artifacts, upload them to the object
// store and remove the directory again. Removal runs even when an earlier
// step failed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/coin-ingest/pkg/extractor"
	"github.com/Sternrassler/coin-ingest/pkg/fstools"
	"github.com/Sternrassler/coin-ingest/pkg/objectstore"
)

var (
	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_pipeline_step_duration_seconds",
		Help:    "Pipeline step duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_pipeline_runs_total",
		Help: "Pipeline runs by final status",
	}, []string{"status"})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_uploads_total",
		Help: "Object uploads by provider and status",
	}, []string{"provider", "status"})
)

// Step names a pipeline stage.
type Step string

const (
	StepCreateTempDir Step = "create_temp_dir"
	StepExtract       Step = "extract"
	StepListFiles     Step = "list_files"
	StepUpload        Step = "upload"
	StepCleanup       Step = "cleanup"
)

// StepStatus is the result of one step.
type StepStatus string

const (
	StatusOK      StepStatus = "ok"
	StatusFailed  StepStatus = "failed"
	StatusSkipped StepStatus = "skipped"
)

// Run statuses reported by ingest_pipeline_runs_total.
const (
	RunSucceeded = "succeeded"
	RunTruncated = "truncated"
	RunFailed    = "failed"
)

// Runner extracts a job into its destination directory.
type Runner interface {
	Run(ctx context.Context, job extractor.Job) (extractor.Result, error)
}

// StepReport records one step.
type StepReport struct {
	Step     Step
	Status   StepStatus
	Duration time.Duration
	Err      error
}

// Report describes a finished run.
type Report struct {
	RunID      string
	Source     string
	Surname    string
	TempDir    string
	Files      []string
	Keys       []string
	Extraction extractor.Result
	Steps      []StepReport
	Status     string
	Started    time.Time
	Finished   time.Time
}

// StepStatus returns the status recorded for step, or StatusSkipped.
func (r *Report) StepStatus(step Step) StepStatus {
	for _, s := range r.Steps {
		if s.Step == step {
			return s.Status
		}
	}
	return StatusSkipped
}

// Config holds pipeline settings.
type Config struct {
	// Layer is the first storage path segment, e.g. "Bronze".
	Layer string

	// TempParent is where the staging directory is created; empty means os.TempDir.
	TempParent string

	// Provider labels upload metrics.
	Provider string
}

// Pipeline runs a single source's job.
type Pipeline struct {
	runner     Runner
	store      objectstore.Store
	job        extractor.Job
	sourceName string
	config     Config
	logger     zerolog.Logger
	newRunID   func() string
}

// New creates a pipeline for job. sourceName prefixes the storage path.
func New(runner Runner, sourceName string, job extractor.Job, store objectstore.Store, cfg Config, logger zerolog.Logger) *Pipeline {
	if cfg.Layer == "" {
		cfg.Layer = "Bronze"
	}
	if cfg.Provider == "" {
		cfg.Provider = "unknown"
	}
	return &Pipeline{
		runner:     runner,
		store:      store,
		job:        job,
		sourceName: sourceName,
		config:     cfg,
		logger:     logger.With().Str("component", "pipeline").Logger(),
		newRunID:   uuid.NewString,
	}
}

// Run executes the five steps. A failing step skips the remaining ones except
// cleanup; the returned error combines the step failure and any cleanup failure.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:   p.newRunID(),
		Source:  p.sourceName,
		Surname: p.job.Surname(),
		Started: time.Now(),
	}
	logger := p.logger.With().
		Str("run_id", report.RunID).
		Str("source", p.sourceName+"_"+report.Surname).
		Logger()
	logger.Info().Msg("Pipeline started")

	var result *multierror.Error

	err := p.step(report, logger, StepCreateTempDir, func() error {
		dir, err := fstools.CreateTempDir(p.config.TempParent, report.Surname, logger)
		report.TempDir = dir
		return err
	})
	if err == nil {
		err = p.step(report, logger, StepExtract, func() error {
			res, err := p.runner.Run(ctx, p.job.WithDestination(report.TempDir))
			report.Extraction = res
			if err == nil && res.Err != nil {
				logger.Warn().Err(res.Err).Str("outcome", string(res.Outcome)).Msg("Extraction incomplete")
			}
			return err
		})
	}
	if err == nil {
		err = p.step(report, logger, StepListFiles, func() error {
			files, err := fstools.ListDir(report.TempDir)
			report.Files = files
			logger.Info().Strs("files", files).Msg("Staged files")
			return err
		})
	}
	if err == nil {
		err = p.step(report, logger, StepUpload, func() error {
			return p.upload(ctx, report, logger)
		})
	}
	if err != nil {
		result = multierror.Append(result, err)
	}

	if report.TempDir != "" {
		if cerr := p.step(report, logger, StepCleanup, func() error {
			return removeDir(report.TempDir, logger)
		}); cerr != nil {
			result = multierror.Append(result, cerr)
		}
	}

	report.Finished = time.Now()
	switch {
	case result.ErrorOrNil() != nil:
		report.Status = RunFailed
	case report.Extraction.Outcome == extractor.OutcomeTruncated, report.Extraction.WriteFailures > 0:
		report.Status = RunTruncated
	default:
		report.Status = RunSucceeded
	}
	runsTotal.WithLabelValues(report.Status).Inc()

	if err := result.ErrorOrNil(); err != nil {
		logger.Error().Err(err).Msg("Pipeline failed")
		return report, err
	}
	logger.Info().
		Str("status", report.Status).
		Int("uploaded", len(report.Keys)).
		Dur("duration", report.Finished.Sub(report.Started)).
		Msg("Pipeline finished")
	return report, nil
}

// step runs fn, times it and records the outcome.
func (p *Pipeline) step(report *Report, logger zerolog.Logger, step Step, fn func() error) error {
	logger.Debug().Str("step", string(step)).Msg("Step started")
	start := time.Now()

	err := fn()

	elapsed := time.Since(start)
	stepDuration.WithLabelValues(string(step)).Observe(elapsed.Seconds())

	sr := StepReport{Step: step, Status: StatusOK, Duration: elapsed}
	if err != nil {
		sr.Status = StatusFailed
		sr.Err = err
		err = fmt.Errorf("%s: %w", step, err)
		logger.Error().Err(err).Str("step", string(step)).Msg("Step failed")
	} else {
		logger.Info().Str("step", string(step)).Dur("duration", elapsed).Msg("Step finished")
	}
	report.Steps = append(report.Steps, sr)
	return err
}

// upload sends every staged file and collects all failures.
func (p *Pipeline) upload(ctx context.Context, report *Report, logger zerolog.Logger) error {
	folder := fstools.StoragePath(p.config.Layer, p.sourceName, report.Surname)

	var errs *multierror.Error
	for _, name := range report.Files {
		if err := ctx.Err(); err != nil {
			return multierror.Append(errs, err).ErrorOrNil()
		}
		localPath := filepath.Join(report.TempDir, name)
		key, err := p.store.Upload(ctx, localPath, folder)
		if err != nil {
			uploadsTotal.WithLabelValues(p.config.Provider, "error").Inc()
			errs = multierror.Append(errs, err)
			logger.Error().Err(err).Str("file", name).Msg("Upload failed")
			continue
		}
		uploadsTotal.WithLabelValues(p.config.Provider, "ok").Inc()
		report.Keys = append(report.Keys, key)
		logger.Info().Str("key", key).Msg("Uploaded")
	}
	return errs.ErrorOrNil()
}

// removeDir deletes dir and reports an error only if it is still present afterwards.
func removeDir(dir string, logger zerolog.Logger) error {
	fstools.RemoveTempDir(dir, logger)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("temporary directory %s still exists", dir)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	return nil
}
