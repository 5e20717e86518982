// Package logging constructs the structured loggers used across the engine.
//
// Components never reach for a package-level default; they receive a
// *log.Logger through their options and fall back to Discard when given nil.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/otto-ai/otto/internal/config"
)

// New builds a logger from the logging section of the config.
func New(cfg config.LoggingConfig) *log.Logger {
	opts := log.Options{
		ReportTimestamp: cfg.ReportTimestamp,
		Level:           parseLevel(cfg.Level),
	}
	if cfg.Format == "json" {
		opts.Formatter = log.JSONFormatter
	}

	return log.NewWithOptions(os.Stderr, opts)
}

// Discard returns a logger that drops every record.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// Or returns logger, or Discard when logger is nil.
func Or(logger *log.Logger) *log.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

func parseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
