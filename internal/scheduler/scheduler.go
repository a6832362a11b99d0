// Package scheduler runs a job immediately and then on a fixed interval.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Job is one scheduled unit of work. Errors are logged, never fatal.
type Job func(ctx context.Context) error

// Scheduler runs a Job periodically, one run at a time.
type Scheduler struct {
	job      Job
	interval time.Duration
	logger   zerolog.Logger

	runs     atomic.Int64
	failures atomic.Int64
	lastRun  atomic.Int64
	lastOK   atomic.Bool
}

// New creates a scheduler.
func New(job Job, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		job:      job,
		interval: interval,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start runs the job now and then every interval until ctx is done.
// Runs never overlap.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("Scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			s.logger.Info().Msg("Scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Debug().Msg("Tick: running job")

	start := time.Now()
	err := s.job(ctx)

	s.runs.Add(1)
	s.lastRun.Store(start.UnixNano())
	s.lastOK.Store(err == nil)
	if err != nil {
		s.failures.Add(1)
		s.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Tick: job failed")
		return
	}
	s.logger.Debug().Dur("duration", time.Since(start)).Msg("Tick: job completed")
}

// Status is a snapshot of scheduler activity.
type Status struct {
	Runs        int64     `json:"runs"`
	Failures    int64     `json:"failures"`
	LastRun     time.Time `json:"last_run"`
	LastSuccess bool      `json:"last_success"`
	Interval    string    `json:"interval"`
}

// Status returns the current counters.
func (s *Scheduler) Status() Status {
	st := Status{
		Runs:        s.runs.Load(),
		Failures:    s.failures.Load(),
		LastSuccess: s.lastOK.Load(),
		Interval:    s.interval.String(),
	}
	if ns := s.lastRun.Load(); ns != 0 {
		st.LastRun = time.Unix(0, ns).UTC()
	}
	return st
}
