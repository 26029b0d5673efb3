// Package log wraps log/slog with the level, format and error conventions
// used across sweep. Entries go to stderr so stdout stays free for command
// output.
package log

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/sweep/internal/errors"
)

// Logger is a structured logger. The zero value is not usable; build one
// with New or Discard.
type Logger struct {
	slog *slog.Logger
}

// New builds a Logger from config. FormatAuto resolves to text when the
// output is a terminal.
func New(config Config) *Logger {
	w := config.Output.Writer()
	opts := &slog.HandlerOptions{
		Level:     config.Level.ToSlogLevel(),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.resolvedFormat() == FormatText {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(handler)
	if config.ServiceName != "" {
		l = l.With("service", config.ServiceName)
	}
	if config.ServiceVersion != "" {
		l = l.With("version", config.ServiceVersion)
	}
	return &Logger{slog: l}
}

// Default is New(DefaultConfig())
func Default() *Logger {
	return New(DefaultConfig())
}

// Discard returns a logger that writes nothing
func Discard() *Logger {
	return &Logger{slog: slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4}))}
}

// With returns a Logger that adds args to every entry
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// WithError attaches err to every entry. SweepErrors contribute their code,
// suggestions and cause.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.With(errorArgs(err)...)
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slog.InfoContext(ctx, msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slog.ErrorContext(ctx, msg, args...)
}

// LogErrorContext records err as a failed operation. A nil err is ignored.
func (l *Logger) LogErrorContext(ctx context.Context, err error) {
	if err == nil {
		return
	}
	l.ErrorContext(ctx, "operation failed", errorArgs(err)...)
}

func errorArgs(err error) []any {
	var se *errors.SweepError
	if !stderrors.As(err, &se) {
		return []any{"error", err.Error()}
	}

	args := []any{"error", se.Message, "error_code", string(se.Code)}
	if len(se.Suggestions) > 0 {
		args = append(args, "suggestions", se.Suggestions)
	}
	if se.Cause != nil {
		args = append(args, "cause", se.Cause.Error())
	}
	return args
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// SetDefaultLogger replaces the process-wide logger returned by DefaultLogger
func SetDefaultLogger(logger *Logger) {
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
}

// DefaultLogger returns the process-wide logger, creating one from
// DefaultConfig on first use
func DefaultLogger() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = Default()
	}
	return defaultLogger
}
