// internal/logger/logger.go
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger. format "json" writes structured lines,
// anything else uses the colorized console writer.
func Init(level, format string) {
	Setup(os.Stderr, level, format)
}

// Setup configures the global logger to write to out.
func Setup(out io.Writer, level, format string) {
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	// Add the caller's file and line number
	log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger()
}
