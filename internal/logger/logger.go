package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type contextKey string

const loggerKey contextKey = "logger"

var log = New(os.Stdout, false)

// Options is the subset of configuration the logger cares about.
type Options struct {
	Level string
	JSON  bool
}

// New builds a logger writing to w. Console output is used unless json is set.
func New(w io.Writer, json bool) zerolog.Logger {
	if !json {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// Init replaces the process logger.
func Init(opts Options) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log = New(os.Stdout, opts.JSON)
}

// SetOutput redirects the process logger, mostly for tests.
func SetOutput(w io.Writer) {
	log = New(w, true)
}

func Get() zerolog.Logger { return log }

func Debug() *zerolog.Event { return log.Debug() }
func Info() *zerolog.Event  { return log.Info() }
func Warn() *zerolog.Event  { return log.Warn() }
func Error() *zerolog.Event { return log.Error() }
func Fatal() *zerolog.Event { return log.Fatal() }

// WithContext stores l on ctx.
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the request logger, or the process logger when none is set.
func FromContext(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return &l
	}
	l := log
	return &l
}
