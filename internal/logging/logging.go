// Package logging configures the process-wide zerolog logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets up the global logger: human-readable console output in debug,
// JSON otherwise. Returns the configured logger for explicit injection.
func Init(serviceName string, debug bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level := zerolog.InfoLevel
	var out zerolog.Logger
	if debug {
		level = zerolog.DebugLevel
		writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		out = zerolog.New(writer)
	} else {
		out = zerolog.New(os.Stdout)
	}

	logger := out.Level(level).With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	log.Logger = logger
	return logger
}
