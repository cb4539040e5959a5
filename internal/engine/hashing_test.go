// ABOUTME: Tests for the rolling hash arithmetic
// ABOUTME: Rolled hashes must equal direct hashes at every window position

package engine

import (
	"math/rand"
	"testing"
)

func TestHashParams_RollMatchesDirect(t *testing.T) {
	t.Parallel()

	p := DefaultHashParams()
	rng := rand.New(rand.NewSource(7))
	content := make([]byte, 4096)
	rng.Read(content)

	for _, w := range []int{1, 2, 8, 31, 256} {
		power := p.Power(w)
		h := p.Hash(content[:w])
		for o := 1; o+w <= len(content); o++ {
			h = p.Roll(h, content[o-1], content[o+w-1], power)
			if want := p.Hash(content[o : o+w]); h != want {
				t.Fatalf("window %d offset %d: Roll = %d, Hash = %d", w, o, h, want)
			}
		}
	}
}

func TestHashParams_Power(t *testing.T) {
	t.Parallel()

	p := DefaultHashParams()
	tests := []struct {
		w    int
		want uint64
	}{
		{w: 1, want: 1},
		{w: 2, want: 256},
		{w: 3, want: 65536},
		{w: 8, want: 1 << 56},
	}

	for _, tt := range tests {
		if got := p.Power(tt.w); got != tt.want {
			t.Errorf("Power(%d) = %d, want %d", tt.w, got, tt.want)
		}
	}

	// 256^8 = 2^64 = 2^3 * 2^61 = 8 mod (2^61 - 1).
	if got := p.Power(9); got != 8 {
		t.Errorf("Power(9) = %d, want 8", got)
	}
}

func TestHashParams_HashBelowModulus(t *testing.T) {
	t.Parallel()

	p := DefaultHashParams()
	data := make([]byte, 64)
	for i := range data {
		data[i] = 0xff
	}
	if h := p.Hash(data); h >= p.Modulus() {
		t.Errorf("Hash() = %d, want < %d", h, p.Modulus())
	}
	if p.Base() != HashBase {
		t.Errorf("Base() = %d, want %d", p.Base(), HashBase)
	}
}
