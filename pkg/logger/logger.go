// Package logger is the zerolog setup shared by the service. Request scoped
// fields (request id, acting user) travel in the context and are attached
// with For.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New creates a new logger instance.
// Development gets a human readable console writer, every other environment
// JSON lines. A non-empty level overrides the environment default.
func New(serviceName, environment, level string) *Logger {
	var output io.Writer = os.Stdout

	lvl := zerolog.InfoLevel
	switch environment {
	case "development":
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		lvl = zerolog.DebugLevel
	case "test":
		lvl = zerolog.WarnLevel
	}
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil && level != "" {
		lvl = parsed
	}

	logger := zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	return &Logger{Logger: logger}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithComponent returns a logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With().Str("component", component).Logger(),
	}
}

type fieldsKey struct{}

type fields struct {
	requestID string
	userID    string
	role      string
}

func fieldsFrom(ctx context.Context) fields {
	if f, ok := ctx.Value(fieldsKey{}).(fields); ok {
		return f
	}
	return fields{}
}

// ContextWithRequest records the request id For attaches.
func ContextWithRequest(ctx context.Context, requestID string) context.Context {
	f := fieldsFrom(ctx)
	f.requestID = requestID
	return context.WithValue(ctx, fieldsKey{}, f)
}

// ContextWithActor records the acting user For attaches.
func ContextWithActor(ctx context.Context, userID, role string) context.Context {
	f := fieldsFrom(ctx)
	f.userID, f.role = userID, role
	return context.WithValue(ctx, fieldsKey{}, f)
}

// For returns l with the request id and acting user of ctx attached.
func (l *Logger) For(ctx context.Context) *Logger {
	f := fieldsFrom(ctx)
	if f == (fields{}) {
		return l
	}
	c := l.Logger.With()
	if f.requestID != "" {
		c = c.Str("request_id", f.requestID)
	}
	if f.userID != "" {
		c = c.Str("user_id", f.userID).Str("role", f.role)
	}
	return &Logger{Logger: c.Logger()}
}
