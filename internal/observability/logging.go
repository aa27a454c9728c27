package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// EnvLogLevel selects the level of every logger built by NewLogger.
const EnvLogLevel = "INSMARKET_LOG_LEVEL"

// NewLogger creates a structured JSON logger on stderr, so stdout stays free
// for command output. Default level is info.
func NewLogger(component string) zerolog.Logger {
	return NewLoggerWithLevel(component, ParseLogLevel(os.Getenv(EnvLogLevel)))
}

// NewLoggerWithLevel creates a logger with an explicit level.
func NewLoggerWithLevel(component string, level zerolog.Level) zerolog.Logger {
	return zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// ParseLogLevel maps debug, info, warn and error to zerolog levels; anything
// else is info.
func ParseLogLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
