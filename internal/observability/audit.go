// ABOUTME: Audit events for scans, file uploads, and signature catalog changes
// ABOUTME: Emitted as audit_event records on the structured logger

package observability

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types.
const (
	EventTypeScan      = "SCAN"
	EventTypeFile      = "FILE"
	EventTypeSignature = "SIGNATURE"
)

// Audit actions.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionImport = "IMPORT"
)

// Audit results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultPartial = "partial"
)

// AuditLogger writes audit events.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates an audit logger. A nil logger uses slog.Default.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger}
}

func (a *AuditLogger) emit(ctx context.Context, level slog.Level, eventType, action, resource, result string, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("event_type", eventType),
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("result", result),
		slog.String("correlation_id", FromContext(ctx).String()),
		slog.Time("timestamp", time.Now().UTC()),
	}
	a.logger.LogAttrs(ctx, level, "audit_event", append(base, attrs...)...)
}

// LogScan records a completed scan. A report that could not be persisted is
// recorded as a partial result.
func (a *AuditLogger) LogScan(ctx context.Context, fileID string, signatures, matched int, persisted bool) {
	result := ResultSuccess
	level := slog.LevelInfo
	if !persisted {
		result = ResultPartial
		level = slog.LevelWarn
	}
	a.emit(ctx, level, EventTypeScan, ActionCreate, fileID, result,
		slog.Int("signatures", signatures),
		slog.Int("matched", matched),
		slog.Bool("persisted", persisted),
	)
}

// LogScanFailure records a scan that produced no report.
func (a *AuditLogger) LogScanFailure(ctx context.Context, fileID, reason string) {
	a.emit(ctx, slog.LevelWarn, EventTypeScan, ActionCreate, fileID, ResultFailure,
		slog.String("reason", reason),
	)
}

// LogFileUpload records stored content.
func (a *AuditLogger) LogFileUpload(ctx context.Context, fileID, sha256 string, size int64) {
	a.emit(ctx, slog.LevelInfo, EventTypeFile, ActionCreate, fileID, ResultSuccess,
		slog.String("sha256", sha256),
		slog.Int64("size", size),
	)
}

// LogFileDelete records a file removal.
func (a *AuditLogger) LogFileDelete(ctx context.Context, fileID string) {
	a.emit(ctx, slog.LevelInfo, EventTypeFile, ActionDelete, fileID, ResultSuccess)
}

// LogSignatureChange records a signature create, update, or status change.
func (a *AuditLogger) LogSignatureChange(ctx context.Context, action, signatureID, status string) {
	a.emit(ctx, slog.LevelInfo, EventTypeSignature, action, signatureID, ResultSuccess,
		slog.String("status", status),
	)
}

// LogSignatureImport records a bulk import from a feed.
func (a *AuditLogger) LogSignatureImport(ctx context.Context, source string, imported, skipped int) {
	result := ResultSuccess
	if skipped > 0 {
		result = ResultPartial
	}
	a.emit(ctx, slog.LevelInfo, EventTypeSignature, ActionImport, source, result,
		slog.Int("imported", imported),
		slog.Int("skipped", skipped),
	)
}
