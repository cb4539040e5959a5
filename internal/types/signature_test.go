// ABOUTME: Tests for Signature construction, validation, and status parsing
// ABOUTME: Covers anchor splitting, offset bounds, and clone isolation

package types_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

func TestNewSignature(t *testing.T) {
	t.Parallel()

	pattern := []byte("ANCHOR--remainder")
	sig, err := types.NewSignature("Test.Pattern", pattern, 8)
	if err != nil {
		t.Fatalf("NewSignature() error: %v", err)
	}

	if string(sig.Anchor) != "ANCHOR--" {
		t.Errorf("Anchor = %q, want %q", sig.Anchor, "ANCHOR--")
	}
	if sig.WindowSize() != 8 {
		t.Errorf("WindowSize() = %d, want 8", sig.WindowSize())
	}
	if sig.RemainderLength != 9 {
		t.Errorf("RemainderLength = %d, want 9", sig.RemainderLength)
	}
	if sig.RemainderDigest != types.SHA256Hex([]byte("remainder")) {
		t.Errorf("RemainderDigest = %s, want sha256 of remainder", sig.RemainderDigest)
	}
	if sig.Status != types.SignatureStatusActual {
		t.Errorf("Status = %v, want ACTUAL", sig.Status)
	}
	if sig.ID == "" {
		t.Error("ID is empty")
	}

	// The anchor must not alias the caller's buffer.
	pattern[0] = 'X'
	if sig.Anchor[0] != 'A' {
		t.Error("Anchor aliases the input pattern")
	}
}

func TestNewSignature_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		threatName string
		pattern    []byte
		anchorLen  int
	}{
		{name: "missing threat name", pattern: []byte("abc"), anchorLen: 1},
		{name: "zero anchor", threatName: "T", pattern: []byte("abc"), anchorLen: 0},
		{name: "anchor longer than pattern", threatName: "T", pattern: []byte("abc"), anchorLen: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := types.NewSignature(tt.threatName, tt.pattern, tt.anchorLen); err == nil {
				t.Error("NewSignature() expected error, got nil")
			}
		})
	}
}

func TestSignature_Validate(t *testing.T) {
	t.Parallel()

	base := func() *types.Signature {
		return &types.Signature{
			ID:              "sig",
			ThreatName:      "Test",
			Anchor:          []byte("ab"),
			RemainderDigest: types.SHA256Hex(nil),
			Status:          types.SignatureStatusActual,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*types.Signature)
		wantErr error
	}{
		{name: "valid", mutate: func(*types.Signature) {}},
		{name: "missing id", mutate: func(s *types.Signature) { s.ID = "" }, wantErr: types.ErrMissingSignatureID},
		{name: "empty anchor", mutate: func(s *types.Signature) { s.Anchor = nil }, wantErr: types.ErrEmptyAnchor},
		{name: "negative remainder", mutate: func(s *types.Signature) { s.RemainderLength = -1 }, wantErr: types.ErrNegativeRemainder},
		{
			name:    "negative offset",
			mutate:  func(s *types.Signature) { s.OffsetStart = types.IntPtr(-1) },
			wantErr: types.ErrNegativeOffset,
		},
		{
			name:    "inverted offsets",
			mutate:  func(s *types.Signature) { s.WithOffsets(types.IntPtr(10), types.IntPtr(5)) },
			wantErr: types.ErrInvertedOffsets,
		},
		{
			name:   "equal offsets",
			mutate: func(s *types.Signature) { s.WithOffsets(types.IntPtr(5), types.IntPtr(5)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sig := base()
			tt.mutate(sig)
			err := sig.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseSignatureStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    types.SignatureStatus
		wantErr bool
	}{
		{input: "ACTUAL", want: types.SignatureStatusActual},
		{input: "deleted", want: types.SignatureStatusDeleted},
		{input: "Corrupted", want: types.SignatureStatusCorrupted},
		{input: "gone", wantErr: true},
	}

	for _, tt := range tests {
		got, err := types.ParseSignatureStatus(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSignatureStatus(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseSignatureStatus(%q) = %v, %v, want %v", tt.input, got, err, tt.want)
		}
	}

	if !types.SignatureStatusActual.IsActive() || types.SignatureStatusDeleted.IsActive() {
		t.Error("IsActive() only holds for ACTUAL")
	}
}

func TestSignature_Clone(t *testing.T) {
	t.Parallel()

	sig, err := types.NewSignature("Test", []byte("abcdef"), 3)
	if err != nil {
		t.Fatalf("NewSignature() error: %v", err)
	}
	sig.WithOffsets(types.IntPtr(1), types.IntPtr(9))

	c := sig.Clone()
	c.Anchor[0] = 'z'
	*c.OffsetStart = 100

	if sig.Anchor[0] != 'a' {
		t.Error("Clone shares the anchor buffer")
	}
	if *sig.OffsetStart != 1 {
		t.Error("Clone shares offset pointers")
	}
}

func TestSignature_JSON(t *testing.T) {
	t.Parallel()

	sig, err := types.NewSignature("Test", []byte{0x00, 0xff, 0x10, 0x20}, 2)
	if err != nil {
		t.Fatalf("NewSignature() error: %v", err)
	}
	sig.WithFileType("pe")

	data, err := json.Marshal(sig)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var got types.Signature
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if string(got.Anchor) != string(sig.Anchor) {
		t.Errorf("Anchor = %x, want %x", got.Anchor, sig.Anchor)
	}
	if got.FileType != "pe" {
		t.Errorf("FileType = %q, want pe", got.FileType)
	}
	if got.OffsetStart != nil {
		t.Errorf("OffsetStart = %v, want nil", *got.OffsetStart)
	}
}
