// Package telemetry configures structured logging for deployctl.
package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Log output goes to stderr so
// stdout stays reserved for command results (text or JSON). Verbose
// enables debug-level events from steps and external tool wrappers.
func NewLogger(out io.Writer, verbose bool) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	writer := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// WithCommand returns a child logger tagged with the running command and
// environment, so every step event is attributable.
func WithCommand(logger zerolog.Logger, command, env string) zerolog.Logger {
	return logger.With().Str("command", command).Str("environment", env).Logger()
}
