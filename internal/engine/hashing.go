// ABOUTME: Polynomial rolling hash parameters shared by every scan
// ABOUTME: Fixed base 256 over raw bytes with the Mersenne prime 2^61-1 as modulus

package engine

import "math/bits"

// Hashing constants. The modulus is fixed for the whole engine so every caller
// computes identical anchor hashes.
const (
	HashBase    uint64 = 256
	HashModulus uint64 = (1 << 61) - 1
)

// HashParams is an immutable rolling hash configuration.
type HashParams struct {
	base    uint64
	modulus uint64
}

// DefaultHashParams returns the engine-wide parameters.
func DefaultHashParams() HashParams {
	return HashParams{base: HashBase, modulus: HashModulus}
}

// Base returns the polynomial base.
func (p HashParams) Base() uint64 { return p.base }

// Modulus returns the prime modulus.
func (p HashParams) Modulus() uint64 { return p.modulus }

// mulMod returns a*b mod m. Operands are < m < 2^61, so the high word of the
// product is always < m as required by bits.Div64.
func (p HashParams) mulMod(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	_, rem := bits.Div64(hi, lo, p.modulus)
	return rem
}

// Hash computes the polynomial hash of data directly.
func (p HashParams) Hash(data []byte) uint64 {
	var h uint64
	for _, b := range data {
		h = (p.mulMod(h, p.base) + uint64(b)) % p.modulus
	}
	return h
}

// Power returns base^(w-1) mod modulus, the weight of the outgoing byte in a
// window of size w.
func (p HashParams) Power(w int) uint64 {
	result := uint64(1)
	base := p.base % p.modulus
	for e := w - 1; e > 0; e >>= 1 {
		if e&1 == 1 {
			result = p.mulMod(result, base)
		}
		base = p.mulMod(base, base)
	}
	return result
}

// Roll slides the window one byte: drops out (weighted by power) and appends in.
func (p HashParams) Roll(h uint64, out, in byte, power uint64) uint64 {
	drop := p.mulMod(uint64(out), power)
	h = (h + p.modulus - drop) % p.modulus
	return (p.mulMod(h, p.base) + uint64(in)) % p.modulus
}
