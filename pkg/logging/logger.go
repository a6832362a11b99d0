// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
// Only the composition root (cmd/coin-ingest) should call this; components
// receive a logger derived from the result via NewLogger or Component.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name, derived from
// the global logger.
func NewLogger(component string) zerolog.Logger {
	return Component(log.Logger, component)
}

// Component derives a child logger tagged with a component name.
func Component(parent zerolog.Logger, component string) zerolog.Logger {
	return parent.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Per-page request parameters
//   - Cache operations (hit/miss, key, TTL)
//   - Retry backoff decisions
//
// Info: Normal operation events
//   - Pipeline step start/finish
//   - Artifacts written, objects uploaded
//   - Scheduler start/stop
//
// Warn: Warning conditions that don't prevent operation
//   - Extraction truncated by a fetch error (best-effort policy)
//   - Artifact write failures (best-effort policy)
//   - Cache errors (fallback to direct request)
//
// Error: Error conditions requiring attention
//   - Pipeline step failures
//   - Object store authentication failures
//   - Configuration errors
//
// Context Fields:
//   - run_id: pipeline run identifier
//   - step: pipeline step name
//   - source: source name and surname
//   - page: page counter of the extraction loop
//   - endpoint: request URL path
//   - status_code: HTTP status code
//   - error_class: error classification (client, server, network)
//   - key: object store key
