// Package logging builds the structured logger shared by every component,
// styled after the teacher's internal/shared/monitoring.NewLogger: JSON by
// default, an optional human-readable console writer, timestamps, and a
// fixed "service" field.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger at the given level ("debug", "info", "warn",
// "error") and format ("json" or "pretty").
func New(level, format string) zerolog.Logger {
	var zlevel zerolog.Level
	switch level {
	case "debug":
		zlevel = zerolog.DebugLevel
	case "warn":
		zlevel = zerolog.WarnLevel
	case "error":
		zlevel = zerolog.ErrorLevel
	default:
		zlevel = zerolog.InfoLevel
	}

	var output zerolog.ConsoleWriter
	logger := zerolog.New(os.Stdout).Level(zlevel).With().Timestamp().Str("service", "timeskip").Logger()
	if format == "pretty" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"}
		logger = zerolog.New(output).Level(zlevel).With().Timestamp().Str("service", "timeskip").Logger()
	}

	return logger
}
