// ABOUTME: Tests for digest parsing and algorithm detection
// ABOUTME: Covers SHA256, SHA1, MD5 length detection and malformed input

package types_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

func TestHashType_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		hashType types.HashType
		want     string
	}{
		{name: "SHA256", hashType: types.HashTypeSHA256, want: "sha256"},
		{name: "SHA1", hashType: types.HashTypeSHA1, want: "sha1"},
		{name: "MD5", hashType: types.HashTypeMD5, want: "md5"},
		{name: "Unknown", hashType: types.HashTypeUnknown, want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.hashType.String(); got != tt.want {
				t.Errorf("HashType.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDigest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantType types.HashType
		wantErr  bool
	}{
		{
			name:     "valid SHA256",
			input:    "275a021bbfb6489e54d471899f7db9d1663fc695ec2fe2a2c4538aabf651fd0f",
			wantType: types.HashTypeSHA256,
		},
		{
			name:     "SHA256 uppercase with spaces",
			input:    "  275A021BBFB6489E54D471899F7DB9D1663FC695EC2FE2A2C4538AABF651FD0F ",
			wantType: types.HashTypeSHA256,
		},
		{
			name:     "valid SHA1",
			input:    "3395856ce81f2b7382dee72602f798b642f14140",
			wantType: types.HashTypeSHA1,
		},
		{
			name:     "valid MD5",
			input:    "44d88612fea8a8f36de82e1278abb02f",
			wantType: types.HashTypeMD5,
		},
		{name: "empty", input: "", wantErr: true},
		{name: "wrong length", input: "abc123", wantErr: true},
		{
			name:    "non-hex characters",
			input:   "zz5a021bbfb6489e54d471899f7db9d1663fc695ec2fe2a2c4538aabf651fd0f",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := types.ParseDigest(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDigest(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDigest(%q) unexpected error: %v", tt.input, err)
			}
			if got.Type != tt.wantType {
				t.Errorf("ParseDigest(%q).Type = %v, want %v", tt.input, got.Type, tt.wantType)
			}
			if len(got.Sum)*2 != len(got.Value) {
				t.Errorf("len(Sum) = %d, want %d", len(got.Sum), len(got.Value)/2)
			}
		})
	}
}

func TestDigest_Compute(t *testing.T) {
	t.Parallel()

	data := []byte("remainder bytes")
	for _, ht := range []types.HashType{types.HashTypeSHA256, types.HashTypeSHA1, types.HashTypeMD5} {
		d, err := types.ParseDigest(hex.EncodeToString(types.SumBytes(ht, data)))
		if err != nil {
			t.Fatalf("ParseDigest(%v) error: %v", ht, err)
		}
		if !bytes.Equal(d.Compute(data), d.Sum) {
			t.Errorf("%v Compute() does not match parsed sum", ht)
		}
		if bytes.Equal(d.Compute([]byte("other")), d.Sum) {
			t.Errorf("%v Compute() matched different data", ht)
		}
	}
}

func TestSHA256Hex(t *testing.T) {
	t.Parallel()

	// SHA-256 of the empty string.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := types.SHA256Hex(nil); got != want {
		t.Errorf("SHA256Hex(nil) = %s, want %s", got, want)
	}
}
