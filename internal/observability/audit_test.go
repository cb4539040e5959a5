// ABOUTME: Tests for audit event records
// ABOUTME: Verifies event fields and partial results for unpersisted scans

package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/observability"
)

func decodeAudit(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decoding audit line: %v\n%s", err, buf.String())
	}
	buf.Reset()
	return entry
}

func TestAuditLogger_Events(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	audit := observability.NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := observability.WithCorrelationID(context.Background(), "c-1")

	audit.LogScan(ctx, "file-1", 10, 2, true)
	e := decodeAudit(t, &buf)
	if e["msg"] != "audit_event" || e["event_type"] != "SCAN" || e["result"] != "success" {
		t.Errorf("scan event = %v", e)
	}
	if e["resource"] != "file-1" || e["correlation_id"] != "c-1" || e["matched"] != float64(2) {
		t.Errorf("scan event fields = %v", e)
	}

	audit.LogScan(ctx, "file-1", 10, 0, false)
	e = decodeAudit(t, &buf)
	if e["result"] != "partial" || e["level"] != "WARN" {
		t.Errorf("unpersisted scan event = %v", e)
	}

	audit.LogSignatureImport(ctx, "feed.csv", 5, 1)
	e = decodeAudit(t, &buf)
	if e["event_type"] != "SIGNATURE" || e["action"] != "IMPORT" || e["result"] != "partial" {
		t.Errorf("import event = %v", e)
	}

	audit.LogFileUpload(ctx, "file-2", "abc", 3)
	e = decodeAudit(t, &buf)
	if e["event_type"] != "FILE" || e["size"] != float64(3) {
		t.Errorf("upload event = %v", e)
	}
}
