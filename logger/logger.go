package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger. format is "console" for human-readable output or "json".
// An unknown level falls back to info.
func Setup(level, format string) {
	log.Logger = New(os.Stdout, level, format)
	zerolog.SetGlobalLevel(parseLevel(level))
}

func New(out io.Writer, level, format string) zerolog.Logger {
	if format == "console" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(out).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}
