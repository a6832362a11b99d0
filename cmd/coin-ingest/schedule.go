package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/coin-ingest/internal/scheduler"
	"github.com/Sternrassler/coin-ingest/pkg/logging"
	"github.com/Sternrassler/coin-ingest/pkg/metrics"
)

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline periodically and serve /health and /metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if interval > 0 {
				cfg.Scheduler.Interval = interval
			}
			logger := logging.NewLogger("schedule")

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sched := scheduler.New(func(ctx context.Context) error {
				_, err := a.pipeline.Run(ctx)
				return err
			}, cfg.Scheduler.Interval, log.Logger)

			e := newServer(a.redis, sched)
			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				Handler:      e,
			}

			serverErr := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
				close(serverErr)
			}()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			schedDone := make(chan struct{})
			go func() {
				sched.Start(ctx)
				close(schedDone)
			}()

			var runErr error
			select {
			case <-ctx.Done():
			case err, ok := <-serverErr:
				if ok {
					runErr = err
				}
				cancel()
			}
			<-schedDone

			shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer stop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("HTTP server shutdown")
			}
			logger.Info().Msg("Stopped")
			return runErr
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "override scheduler.interval")
	return cmd
}

// newServer builds the operational HTTP surface of schedule mode.
func newServer(rdb *redis.Client, sched *scheduler.Scheduler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/ready", readyHandler(rdb))
	e.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, sched.Status())
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	return e
}

// readyHandler reports 503 while the response cache is configured but unreachable.
func readyHandler(rdb *redis.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		if rdb != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				return c.String(http.StatusServiceUnavailable, "redis unavailable")
			}
		}
		return c.String(http.StatusOK, "OK")
	}
}
