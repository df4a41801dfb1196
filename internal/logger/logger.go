package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog.Logger for application-wide logging
type Logger struct {
	*zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string    // debug, info, warn, error
	Pretty     bool      // console output instead of JSON lines
	Output     io.Writer // destination (os.Stdout when nil); the CLI logs to stderr
	OutputFile string    // optional file receiving a copy of every line
}

// New creates a new logger with the given configuration.
// An unknown level falls back to info.
func New(cfg Config) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}
	if cfg.OutputFile != "" {
		if file, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			output = io.MultiWriter(output, file)
		}
	}

	zl := zerolog.New(output).With().Timestamp().Caller().Logger()
	return wrap(zl)
}

// NewDefault creates an info-level console logger
func NewDefault() *Logger {
	return New(Config{Level: "info", Pretty: true})
}

func wrap(zl zerolog.Logger) *Logger {
	return &Logger{Logger: &zl}
}

// WithComponent returns a logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	return wrap(l.With().Str("component", component).Logger())
}

// WithRequest returns a logger tagged with the request ID and client IP
func (l *Logger) WithRequest(requestID, clientIP string) *Logger {
	ctx := l.With()
	if requestID != "" {
		ctx = ctx.Str("request_id", requestID)
	}
	if clientIP != "" {
		ctx = ctx.Str("ip", clientIP)
	}
	return wrap(ctx.Logger())
}

// WithSession returns a logger with a resolver session field
func (l *Logger) WithSession(sessionID string) *Logger {
	return wrap(l.With().Str("session_id", sessionID).Logger())
}

// WithQuery returns a logger with the address query being resolved
func (l *Logger) WithQuery(query string) *Logger {
	return wrap(l.With().Str("query", query).Logger())
}

// WithContext attaches l to ctx
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.Logger.WithContext(ctx)
}

// FromContext returns the logger attached to ctx, or fallback when there is none
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	if zl := zerolog.Ctx(ctx); zl != nil && zl.GetLevel() != zerolog.Disabled {
		return &Logger{Logger: zl}
	}
	return fallback
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return wrap(zerolog.Nop())
}

// Global returns the global logger instance
func Global() *Logger {
	return &Logger{Logger: &log.Logger}
}
