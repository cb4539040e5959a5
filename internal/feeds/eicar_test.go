// ABOUTME: Tests for the built-in EICAR signature
// ABOUTME: Scans the EICAR string through the engine to confirm detection

package feeds_test

import (
	"context"
	"testing"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/engine"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/feeds"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

func TestEICARSignature(t *testing.T) {
	t.Parallel()

	sig := feeds.EICARSignature()
	if err := sig.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if sig.ID != feeds.EICARSignatureID {
		t.Errorf("ID = %s, want %s", sig.ID, feeds.EICARSignatureID)
	}
	if again := feeds.EICARSignature(); again.ID != sig.ID {
		t.Error("EICAR signature ID should be stable")
	}
	if string(sig.Anchor) != "X5O!P%@A" {
		t.Errorf("Anchor = %q", sig.Anchor)
	}
	if got := len(sig.Anchor) + sig.RemainderLength; got != len(feeds.EICARTestString()) {
		t.Errorf("pattern length = %d, want %d", got, len(feeds.EICARTestString()))
	}
}

func TestEICARSignature_Detects(t *testing.T) {
	t.Parallel()

	content := []byte("prefix-" + feeds.EICARTestString() + "\r\n")
	eng := engine.NewEngine(engine.EngineConfig{})

	report, err := eng.Scan(context.Background(), content, []*types.Signature{feeds.EICARSignature()}, engine.ScanOptions{})
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	rec := report.Records[0]
	if !rec.Matched {
		t.Fatal("EICAR should be detected")
	}
	if rec.OffsetFromStart == nil || *rec.OffsetFromStart != 7 {
		t.Errorf("OffsetFromStart = %v, want 7", rec.OffsetFromStart)
	}
	if rec.OffsetFromEnd == nil || *rec.OffsetFromEnd != 74 {
		t.Errorf("OffsetFromEnd = %v, want 74", rec.OffsetFromEnd)
	}
}
