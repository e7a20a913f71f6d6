// Package log provides scoped structured logging over zerolog.
package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Attr adds a structured field to a logger.
type Attr func(zerolog.Context) zerolog.Context

// Scope sets the component name of a logger.
func Scope(s string) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Str("s", s)
	}
}

// Path sets the document or collection path.
func Path(p string) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Str("path", p)
	}
}

// RunID sets the migration run identifier.
func RunID(id string) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Str("run", id)
	}
}

// Count sets a number of documents.
func Count(n int64) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Int64("count", n)
	}
}

// Size sets a size in bytes.
func Size(n uint64) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Uint64("size_bytes", n)
	}
}

// Elapsed sets a duration in seconds.
func Elapsed(d time.Duration) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Float64("elapsed_secs", d.Round(time.Millisecond).Seconds())
	}
}

// Int sets an integer field.
func Int(key string, v int) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Int(key, v)
	}
}

// Field sets an arbitrary field.
func Field(key string, v any) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Interface(key, v)
	}
}

// Logger is a leveled logger bound to a set of attributes.
type Logger struct {
	zl *zerolog.Logger
}

// InitGlobals configures the global logger and returns it.
func InitGlobals(level zerolog.Level, json, noColor bool) Logger {
	return initGlobals(os.Stderr, level, json, noColor)
}

func initGlobals(out io.Writer, level zerolog.Level, json, noColor bool) Logger {
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Second

	w := out
	if !json {
		w = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    noColor,
			TimeFormat: "2006-01-02 15:04:05.000",
		}
	}

	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &zl

	return Logger{zl: &zl}
}

// New returns the global logger with the scope set.
func New(scope string) Logger {
	zl := zerolog.DefaultContextLogger
	if zl == nil {
		nop := zerolog.Nop()
		zl = &nop
	}

	return Logger{zl: zl}.With(Scope(scope))
}

// Ctx returns the logger stored in ctx, or the global one.
func Ctx(ctx context.Context) Logger {
	return Logger{zl: zerolog.Ctx(ctx)}
}

// WithAttrs returns a copy of ctx carrying the context logger with attrs added.
func WithAttrs(ctx context.Context, attrs ...Attr) context.Context {
	return Ctx(ctx).With(attrs...).WithContext(ctx)
}

// With returns a child logger with attrs added.
func (l Logger) With(attrs ...Attr) Logger {
	c := l.zl.With()
	for _, attr := range attrs {
		c = attr(c)
	}

	zl := c.Logger()

	return Logger{zl: &zl}
}

// WithContext stores the logger in ctx.
func (l Logger) WithContext(ctx context.Context) context.Context {
	return l.zl.WithContext(ctx)
}

// Unwrap returns the underlying zerolog logger.
func (l Logger) Unwrap() *zerolog.Logger {
	return l.zl
}

func (l Logger) Trace(msg string) {
	l.zl.Trace().Msg(msg)
}

func (l Logger) Tracef(msg string, args ...any) {
	l.zl.Trace().Msgf(msg, args...)
}

func (l Logger) Debug(msg string) {
	l.zl.Debug().Msg(msg)
}

func (l Logger) Debugf(msg string, args ...any) {
	l.zl.Debug().Msgf(msg, args...)
}

func (l Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

func (l Logger) Infof(msg string, args ...any) {
	l.zl.Info().Msgf(msg, args...)
}

// InfoWith logs msg at info level with attrs attached to this event only.
func (l Logger) InfoWith(msg string, attrs ...Attr) {
	l.With(attrs...).Info(msg)
}

func (l Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

func (l Logger) Warnf(msg string, args ...any) {
	l.zl.Warn().Msgf(msg, args...)
}

func (l Logger) Error(err error, msg string) {
	l.zl.Error().Err(err).Msg(msg)
}

func (l Logger) Errorf(err error, msg string, args ...any) {
	l.zl.Error().Err(err).Msgf(msg, args...)
}

func (l Logger) Fatal(err error, msg string) {
	l.zl.Fatal().Err(err).Msg(msg)
}
