// ABOUTME: Structured slog logging for the bytescan service and CLI
// ABOUTME: JSON or text output with service metadata and trace/correlation IDs

package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggingConfig holds configuration for structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is json or text.
	Format string

	ServiceName string
	Version     string

	AddSource bool
}

// NewLogger creates a logger writing to w (stderr when nil).
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLogLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	var attrs []slog.Attr
	if cfg.ServiceName != "" {
		attrs = append(attrs, slog.String("service", cfg.ServiceName))
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}

	return slog.New(handler)
}

// ParseLogLevel parses a level name. Unknown names yield info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogWithContext logs msg with the trace, span, and correlation IDs found in ctx.
func LogWithContext(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, args ...any) {
	if !logger.Enabled(ctx, level) {
		return
	}
	if traceID := ExtractTraceID(ctx); traceID != "" {
		args = append(args, slog.String("trace_id", traceID))
	}
	if spanID := ExtractSpanID(ctx); spanID != "" {
		args = append(args, slog.String("span_id", spanID))
	}
	if id := FromContext(ctx); id != "" {
		args = append(args, slog.String("correlation_id", id.String()))
	}

	logger.Log(ctx, level, msg, args...)
}

// ContextLogger wraps a logger so every call picks up context IDs.
type ContextLogger struct {
	logger *slog.Logger
}

// NewContextLogger creates a context-aware logger. A nil logger uses slog.Default.
func NewContextLogger(logger *slog.Logger) *ContextLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextLogger{logger: logger}
}

// Debug logs at debug level.
func (cl *ContextLogger) Debug(ctx context.Context, msg string, args ...any) {
	LogWithContext(ctx, cl.logger, slog.LevelDebug, msg, args...)
}

// Info logs at info level.
func (cl *ContextLogger) Info(ctx context.Context, msg string, args ...any) {
	LogWithContext(ctx, cl.logger, slog.LevelInfo, msg, args...)
}

// Warn logs at warn level.
func (cl *ContextLogger) Warn(ctx context.Context, msg string, args ...any) {
	LogWithContext(ctx, cl.logger, slog.LevelWarn, msg, args...)
}

// Error logs at error level.
func (cl *ContextLogger) Error(ctx context.Context, msg string, args ...any) {
	LogWithContext(ctx, cl.logger, slog.LevelError, msg, args...)
}

// With returns a logger carrying args on every record.
func (cl *ContextLogger) With(args ...any) *ContextLogger {
	return &ContextLogger{logger: cl.logger.With(args...)}
}

// Logger returns the underlying slog.Logger.
func (cl *ContextLogger) Logger() *slog.Logger {
	return cl.logger
}
