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

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	normalized, _ := ParseLevel(string(level))
	switch normalized {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ParseLevel reports whether level names a known level.
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Individual page fetches (url, record count)
//   - Worker lifecycle
//   - Empty partitions (no object written)
//
// Info: Normal operation events
//   - Run start and completion counts
//   - Objects written (key, records, bytes)
//   - Pagination progress on long partitions
//
// Warn: Warning conditions that don't prevent the run
//   - Partition fetch failures (partial or nothing written)
//   - Ledger or event publish failures
//   - Metrics push failures
//
// Error: Error conditions requiring attention
//   - Object store write failures
//   - Invalid invocation payloads
//   - Configuration errors at cold start
//
// Context Fields:
//   - component: client, paginator, partition-writer, ledger, notify, job, lambda
//   - year, grade: Partition identity
//   - url: Page URL being fetched
//   - status_code: HTTP status code
//   - error_class: Error classification (client, server, network, protocol)
//   - pages, records, bytes: Partition volume
//   - object_key: Storage key of the partition object
//   - duration: Request or partition duration
