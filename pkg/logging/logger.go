package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

type Logger struct {
	*slog.Logger
}

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// ContextKey for correlation IDs
type contextKey string

const correlationIDKey contextKey = "correlation_id"

func NewLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo writes JSON records to w.
func NewLoggerTo(w io.Writer, level LogLevel) *Logger {
	var slogLevel slog.Level
	switch LogLevel(strings.ToLower(string(level))) {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}

	handler := slog.NewJSONHandler(w, opts)
	return &Logger{Logger: slog.New(handler)}
}

// Discard is a logger that drops everything. Used by tests.
func Discard() *Logger {
	return NewLoggerTo(io.Discard, LevelError)
}

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context) context.Context {
	if GetCorrelationID(ctx) == "" {
		return context.WithValue(ctx, correlationIDKey, uuid.New().String())
	}
	return ctx
}

// ContextWithCorrelationID stores id as-is, e.g. one taken from X-Request-ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return WithCorrelationID(ctx)
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// GetCorrelationID retrieves the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey).(string); ok {
		return correlationID
	}
	return ""
}

func withCorrelation(ctx context.Context, args []any) []any {
	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		args = append(args, "correlation_id", correlationID)
	}
	return args
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.Logger.Debug(msg, withCorrelation(ctx, args)...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.Logger.Info(msg, withCorrelation(ctx, args)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.Logger.Warn(msg, withCorrelation(ctx, args)...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.Logger.Error(msg, withCorrelation(ctx, args)...)
}

// LogLinkOperation logs link operations without the target URL
func (l *Logger) LogLinkOperation(ctx context.Context, operation, slug string, success bool) {
	l.Logger.Info("link operation",
		"operation", operation,
		"slug", slug,
		"success", success,
		"correlation_id", GetCorrelationID(ctx),
	)
}

// LogURLValidation logs URL validation without the actual URL
func (l *Logger) LogURLValidation(ctx context.Context, valid bool, scheme string) {
	l.Logger.Debug("url validation",
		"valid", valid,
		"scheme", scheme,
		"correlation_id", GetCorrelationID(ctx),
	)
}

// LogAuthEvent logs authentication events without sensitive data
func (l *Logger) LogAuthEvent(ctx context.Context, event string, userID string, success bool) {
	l.Logger.Info("auth event",
		"event", event,
		"user_hash", MaskSensitive(userID),
		"success", success,
		"correlation_id", GetCorrelationID(ctx),
	)
}

// MaskSensitive keeps the first and last 3 characters of values long
// enough to stay traceable. IP addresses go through here before logging.
func MaskSensitive(data string) string {
	if len(data) < 8 {
		return "***"
	}
	return data[:3] + "***" + data[len(data)-3:]
}
