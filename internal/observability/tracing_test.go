// ABOUTME: Tests for tracer provider setup and span ID extraction
// ABOUTME: Uses an in-process SDK provider so no collector is needed

package observability_test

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/observability"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	t.Parallel()

	tp, err := observability.NewTracerProvider(context.Background(), observability.TracingConfig{})
	if err != nil {
		t.Fatalf("NewTracerProvider() error: %v", err)
	}
	if tp.IsEnabled() {
		t.Error("IsEnabled() = true for disabled config")
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error: %v", err)
	}
}

func TestExtractIDs(t *testing.T) {
	t.Parallel()

	if id := observability.ExtractTraceID(context.Background()); id != "" {
		t.Errorf("ExtractTraceID(empty) = %q, want empty", id)
	}

	provider := sdktrace.NewTracerProvider()
	defer provider.Shutdown(context.Background())

	ctx, span := provider.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	if got, want := observability.ExtractTraceID(ctx), span.SpanContext().TraceID().String(); got != want {
		t.Errorf("ExtractTraceID() = %q, want %q", got, want)
	}
	if got, want := observability.ExtractSpanID(ctx), span.SpanContext().SpanID().String(); got != want {
		t.Errorf("ExtractSpanID() = %q, want %q", got, want)
	}
}

func TestStartSpan(t *testing.T) {
	t.Parallel()

	ctx, span := observability.StartSpan(context.Background(), "scan")
	defer span.End()

	if ctx == nil || span == nil {
		t.Fatal("StartSpan() returned nil")
	}
}
