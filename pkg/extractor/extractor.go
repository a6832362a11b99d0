package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrFetch wraps a failed page fetch.
	ErrFetch = errors.New("fetch page")

	// ErrPersist wraps a failed artifact write.
	ErrPersist = errors.New("persist page")

	// ErrPageLimit is reported when a run stops at Config.MaxPages.
	ErrPageLimit = errors.New("page limit reached")
)

// Policy selects how fetch and write failures are handled.
type Policy string

const (
	// PolicyBestEffort stops on a fetch error without returning it and skips failed writes.
	PolicyBestEffort Policy = "best-effort"

	// PolicyFailFast returns the first fetch or write error.
	PolicyFailFast Policy = "fail-fast"
)

// ParsePolicy parses a policy name; empty means PolicyBestEffort.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyBestEffort:
		return PolicyBestEffort, nil
	case PolicyFailFast:
		return PolicyFailFast, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}

// Outcome tells how a run ended.
type Outcome string

const (
	// OutcomeExhausted means the source reported its last page or returned an empty body.
	OutcomeExhausted Outcome = "exhausted"

	// OutcomeTruncated means the run stopped early; Result.Err holds the cause.
	OutcomeTruncated Outcome = "truncated"

	// OutcomeFailed means Run returned an error.
	OutcomeFailed Outcome = "failed"
)

// Result summarizes one run.
type Result struct {
	Pages         int
	Files         []string
	WriteFailures int
	Outcome       Outcome
	Err           error
}

// Config holds extractor settings.
type Config struct {
	Policy Policy

	// MaxPages stops a run after this many fetched pages. Zero means unlimited.
	MaxPages int
}

// DefaultConfig returns best-effort handling without a page limit.
func DefaultConfig() Config {
	return Config{Policy: PolicyBestEffort}
}

// Extractor runs jobs for a single source over a transport.
type Extractor struct {
	transport Transport
	source    Source
	config    Config
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates an Extractor.
func New(transport Transport, source Source, cfg Config, logger zerolog.Logger) *Extractor {
	if cfg.Policy == "" {
		cfg.Policy = PolicyBestEffort
	}
	return &Extractor{
		transport: transport,
		source:    source,
		config:    cfg,
		logger:    logger.With().Str("component", "extractor").Str("source", source.Name()).Logger(),
		now:       time.Now,
	}
}

// Source returns the source this extractor runs.
func (e *Extractor) Source() Source { return e.source }

// Run fetches and persists pages until the source is exhausted, a fetch fails,
// or ctx is done. The transport is opened for the run and closed on every exit path.
func (e *Extractor) Run(ctx context.Context, job Job) (result Result, err error) {
	if r, ok := e.source.(Resetter); ok {
		r.Reset()
	}

	logger := e.logger.With().Str("endpoint", job.RelativePath()).Logger()

	defer func() {
		if err != nil {
			result.Outcome = OutcomeFailed
		}
		extractionsTotal.WithLabelValues(e.source.Name(), string(result.Outcome)).Inc()
	}()

	if err := e.transport.Open(); err != nil {
		return result, fmt.Errorf("open transport: %w", err)
	}
	defer func() {
		if cerr := e.transport.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("Failed to close transport")
		}
	}()

	target := job.URL()
	surname := job.Surname()
	pagination := url.Values{}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if e.config.MaxPages > 0 && page > e.config.MaxPages {
			result.Outcome = OutcomeTruncated
			result.Err = fmt.Errorf("%w: %d", ErrPageLimit, e.config.MaxPages)
			logger.Warn().Int("max_pages", e.config.MaxPages).Msg("Extraction stopped at page limit")
			return result, nil
		}

		params := mergeParams(job.params, pagination)
		logger.Debug().Int("page", page).Str("query", params.Encode()).Msg("Fetching page")

		body, fetchErr := e.transport.Fetch(ctx, target, params)
		if fetchErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			wrapped := fmt.Errorf("%w %d: %w", ErrFetch, page, fetchErr)
			if e.config.Policy == PolicyFailFast {
				return result, wrapped
			}
			result.Outcome = OutcomeTruncated
			result.Err = wrapped
			logger.Warn().Err(fetchErr).Int("page", page).Msg("Extraction truncated by fetch error")
			return result, nil
		}

		if isEmpty(body) {
			logger.Debug().Int("page", page).Msg("Empty page, no more data")
			result.Outcome = OutcomeExhausted
			return result, nil
		}

		result.Pages++
		pagesTotal.WithLabelValues(e.source.Name()).Inc()

		path := filepath.Join(job.destination, ArtifactName(e.source.Name(), surname, e.now(), page))
		if werr := writeArtifact(path, body); werr != nil {
			writeFailuresTotal.WithLabelValues(e.source.Name()).Inc()
			if e.config.Policy == PolicyFailFast {
				return result, fmt.Errorf("%w %d: %w", ErrPersist, page, werr)
			}
			result.WriteFailures++
			logger.Warn().Err(werr).Int("page", page).Msg("Failed to write artifact")
		} else {
			result.Files = append(result.Files, path)
			logger.Debug().Int("page", page).Str("file", filepath.Base(path)).Msg("Artifact written")
		}

		if e.source.IsLastPage(body) {
			result.Outcome = OutcomeExhausted
			logger.Info().Int("pages", result.Pages).Int("files", len(result.Files)).Msg("Extraction finished")
			return result, nil
		}

		pagination = e.source.NextPagination(body)
	}
}
