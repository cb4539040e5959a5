// ABOUTME: MatchVerifier confirms rolling hash hits and applies offset policy
// ABOUTME: Anchor bytes are compared exactly; the remainder is compared by digest

package engine

import (
	"bytes"
	"crypto/subtle"
	"fmt"
)

// verdict is the outcome of verifying one candidate at one offset.
type verdict int

const (
	// verdictMiss means the bytes do not match; scanning continues.
	verdictMiss verdict = iota
	// verdictVerified means anchor and remainder match at the offset.
	verdictVerified
	// verdictFailed means verification could not be performed.
	verdictFailed
)

// Occurrence is a verified anchor+remainder location.
type Occurrence struct {
	Start int
	End   int

	// InBounds is false when the location violates the signature's offset window.
	InBounds bool
}

// MatchVerifier is the sole authority on whether a hash hit is a match.
type MatchVerifier struct {
	stats *engineCounters
}

// verify checks candidate c at offset o of content. Panics are converted to
// verdictFailed so one bad signature cannot abort the scan.
func (v *MatchVerifier) verify(content []byte, o int, c *candidate) (occ Occurrence, res verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			occ = Occurrence{}
			res = verdictFailed
			err = fmt.Errorf("verifying signature %s at offset %d: panic: %v", c.sig.ID, o, r)
		}
	}()

	sig := c.sig
	w := len(sig.Anchor)

	if o < 0 || o+w > len(content) || !bytes.Equal(content[o:o+w], sig.Anchor) {
		if v.stats != nil {
			v.stats.collisions.Add(1)
		}
		return Occurrence{}, verdictMiss, nil
	}

	if c.digestErr != nil {
		return Occurrence{}, verdictFailed, fmt.Errorf("signature %s remainder digest: %w", sig.ID, c.digestErr)
	}

	remStart := o + w
	if sig.RemainderLength > len(content)-remStart {
		return Occurrence{}, verdictMiss, nil
	}
	remEnd := remStart + sig.RemainderLength

	sum := c.digest.Compute(content[remStart:remEnd])
	if subtle.ConstantTimeCompare(sum, c.digest.Sum) != 1 {
		return Occurrence{}, verdictMiss, nil
	}

	occ = Occurrence{
		Start:    o,
		End:      remEnd - 1,
		InBounds: true,
	}
	if sig.OffsetStart != nil && occ.Start < *sig.OffsetStart {
		occ.InBounds = false
	}
	if sig.OffsetEnd != nil && occ.End > *sig.OffsetEnd {
		occ.InBounds = false
	}

	if v.stats != nil {
		v.stats.verified.Add(1)
	}
	return occ, verdictVerified, nil
}
