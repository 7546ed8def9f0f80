package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages can accept a logger without
// importing zerolog themselves.
type Logger = zerolog.Logger

// New builds the process logger. Development gets a console writer, every
// other environment gets JSON on stdout.
func New(env, level string) Logger {
	return NewWithWriter(os.Stdout, env, level)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(w io.Writer, env, level string) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if env == "development" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return zerolog.Nop()
}
