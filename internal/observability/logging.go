package observability

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. format "console" (or "text") writes
// human-readable lines, anything else writes JSON. Unknown levels fall back
// to info.
func NewLogger(level, format, service string) zerolog.Logger {
	return newLogger(os.Stdout, level, format, service)
}

func newLogger(out io.Writer, level, format, service string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	w := out
	switch strings.ToLower(format) {
	case "console", "text":
		w = zerolog.ConsoleWriter{Out: out}
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", service).Logger()
}
