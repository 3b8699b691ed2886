package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Constants for logging levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Environments that select log format
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Logger interface defines the logging contract
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	With(args ...any) Logger
	WithGroup(name string) Logger
}

// New creates logger for the environment: JSON in production, text otherwise
func New(environment string, level string) (Logger, error) {
	switch environment {
	case EnvProduction:
		return NewJSONLogger(level)
	case EnvDevelopment, "":
		return NewTextLogger(level)
	default:
		return nil, fmt.Errorf("unknown environment %q", environment)
	}
}

// NewTextLogger creates a new text logger writing to stderr
func NewTextLogger(level string) (Logger, error) {
	return newLogger(os.Stderr, level, textHandler)
}

// NewJSONLogger creates a new JSON logger writing to stderr
func NewJSONLogger(level string) (Logger, error) {
	return newLogger(os.Stderr, level, jsonHandler)
}

// NewNoOpLogger creates a logger that discards all log messages
func NewNoOpLogger() Logger {
	logger := slog.New(slog.DiscardHandler)
	return &slogLogger{logger: logger}
}

type handlerFunc func(io.Writer, *slog.HandlerOptions) slog.Handler

func textHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return slog.NewTextHandler(w, opts)
}

func jsonHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return slog.NewJSONHandler(w, opts)
}

func newLogger(w io.Writer, level string, handler handlerFunc) (Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   true,
		ReplaceAttr: replace,
	}

	return &slogLogger{logger: slog.New(handler(w, opts))}, nil
}
