// Package logging configures the process-wide zerolog logger and hands out
// component-scoped children of it.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, or pretty for local development
}

// Setup initializes the global logger. Unrecognized levels fall back to info
// rather than failing startup.
func Setup(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	log.Logger = zerolog.New(output).With().
		Timestamp().
		Str("service", "pageforge").
		Logger()
}

// NewLogger returns a child logger tagged with the component name, for
// long-lived workers that log outside any request.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
