// Package log is a thin wrapper around zerolog used across the service.
package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures the global logger. Unknown levels fall back to info.
func Init(level string, pretty bool) {
	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	SetOutput(w)
	SetLevel(level)
}

// SetOutput replaces the writer the logger writes to.
func SetOutput(w io.Writer) {
	logger = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel sets the global log level.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Logger returns the underlying logger for structured events.
func Logger() *zerolog.Logger {
	return &logger
}

// Debug logs msg at debug level.
func Debug(msg string) {
	logger.Debug().Msg(msg)
}

// Info logs msg at info level.
func Info(msg string) {
	logger.Info().Msg(msg)
}

// Warn logs msg at warn level.
func Warn(msg string) {
	logger.Warn().Msg(msg)
}

// Error logs msg at error level.
func Error(msg string) {
	logger.Error().Msg(msg)
}
