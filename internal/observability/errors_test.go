// ABOUTME: Tests for ErrorContext wrapping and log rendering
// ABOUTME: Verifies unwrap, retryability, and the slog group shape

package observability_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/observability"
)

func TestErrorContext_Unwrap(t *testing.T) {
	t.Parallel()

	base := errors.New("disk full")
	ec := observability.NewErrorContext(observability.CodePersistFailed, observability.CategoryTransient, "persist").
		WithError(base)

	if !errors.Is(ec, base) {
		t.Error("errors.Is(ec, base) = false")
	}
	if !ec.IsRetryable() {
		t.Error("IsRetryable() = false for transient error")
	}
	if got := ec.Error(); got != "[PERSIST_FAILED] persist: disk full" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorContext_LogValue(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ec := observability.NewErrorContext(observability.CodeSignatureConfig, observability.CategoryPermanent, "index_build").
		WithError(errors.New("anchor must not be empty")).
		WithDetails(map[string]any{"signature_id": "s1"}).
		WithStack()
	logger.Warn("excluded", slog.Any("defect", ec))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decoding log line: %v", err)
	}
	group, ok := entry["defect"].(map[string]any)
	if !ok {
		t.Fatalf("defect = %T, want object", entry["defect"])
	}
	if group["code"] != "SIGNATURE_CONFIG" || group["is_retryable"] != false {
		t.Errorf("defect = %v", group)
	}
	if group["error"] != "anchor must not be empty" {
		t.Errorf("error = %v", group["error"])
	}
	if st, _ := group["stack_trace"].(string); !strings.Contains(st, "TestErrorContext_LogValue") {
		t.Errorf("stack_trace does not include the caller: %q", st)
	}
}

func TestErrorContext_NoWrappedError(t *testing.T) {
	t.Parallel()

	ec := observability.NewErrorContext(observability.CodeInvalidRequest, observability.CategoryUserError, "decode")
	if got := ec.Error(); got != "[INVALID_REQUEST] decode" {
		t.Errorf("Error() = %q", got)
	}
	if ec.Unwrap() != nil {
		t.Error("Unwrap() != nil")
	}
}
