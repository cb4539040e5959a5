// ABOUTME: RollingHashIndex groups signatures by anchor length for single-pass scanning
// ABOUTME: Precomputes per-group outgoing-byte power and anchor hash lookup tables

package engine

import (
	"fmt"
	"sort"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// candidate is one signature prepared for scanning.
type candidate struct {
	// Position in the snapshot; the aggregator reports in this order.
	pos int

	// Index inside its group, used to track resolution.
	slot int

	sig *types.Signature

	// Parsed remainder digest. A parse failure surfaces at verification time.
	digest    types.Digest
	digestErr error
}

// Group holds every signature sharing one window size.
type Group struct {
	Window int
	Power  uint64

	// Anchor hash to candidates. Distinct anchors may share a hash.
	table      map[uint64][]*candidate
	candidates []*candidate
}

// Size returns the number of signatures in the group.
func (g *Group) Size() int {
	return len(g.candidates)
}

// ConfigDefect describes a signature excluded from the index.
type ConfigDefect struct {
	Position    int
	SignatureID string
	ThreatName  string
	Err         error
}

// Error implements the error interface.
func (d ConfigDefect) Error() string {
	return fmt.Sprintf("signature %s (%s): %v", d.SignatureID, d.ThreatName, d.Err)
}

// Index is the prepared form of a signature snapshot.
type Index struct {
	params  HashParams
	sigs    []*types.Signature
	groups  []*Group
	defects []ConfigDefect
}

// BuildIndex prepares sigs for scanning. Signatures failing validation are
// excluded and reported as defects instead of failing the build.
func BuildIndex(params HashParams, sigs []*types.Signature) *Index {
	idx := &Index{
		params: params,
		sigs:   sigs,
	}

	byWindow := make(map[int]*Group)
	for pos, sig := range sigs {
		if sig == nil {
			idx.defects = append(idx.defects, ConfigDefect{Position: pos, Err: fmt.Errorf("signature is nil")})
			continue
		}
		if err := sig.Validate(); err != nil {
			idx.defects = append(idx.defects, ConfigDefect{
				Position:    pos,
				SignatureID: sig.ID,
				ThreatName:  sig.ThreatName,
				Err:         err,
			})
			continue
		}

		w := sig.WindowSize()
		g, ok := byWindow[w]
		if !ok {
			g = &Group{
				Window: w,
				Power:  params.Power(w),
				table:  make(map[uint64][]*candidate),
			}
			byWindow[w] = g
		}

		c := &candidate{pos: pos, slot: len(g.candidates), sig: sig}
		c.digest, c.digestErr = types.ParseDigest(sig.RemainderDigest)

		h := params.Hash(sig.Anchor)
		g.table[h] = append(g.table[h], c)
		g.candidates = append(g.candidates, c)
	}

	for _, g := range byWindow {
		idx.groups = append(idx.groups, g)
	}
	sort.Slice(idx.groups, func(i, j int) bool {
		return idx.groups[i].Window < idx.groups[j].Window
	})

	return idx
}

// Groups returns the window groups ordered by window size.
func (idx *Index) Groups() []*Group {
	return idx.groups
}

// Defects returns the signatures excluded from scanning.
func (idx *Index) Defects() []ConfigDefect {
	return idx.defects
}

// Len returns the number of signatures in the snapshot, including defects.
func (idx *Index) Len() int {
	return len(idx.sigs)
}
