// ABOUTME: Tests for index construction and hash collision handling
// ABOUTME: Forces colliding table entries to check the verifier rejects them

package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

func indexSig(id string, anchor []byte) *types.Signature {
	return &types.Signature{
		ID:              id,
		ThreatName:      "Test." + id,
		Anchor:          anchor,
		RemainderDigest: types.SHA256Hex(nil),
		Status:          types.SignatureStatusActual,
	}
}

func TestBuildIndex_GroupsByWindow(t *testing.T) {
	t.Parallel()

	sigs := []*types.Signature{
		indexSig("a", []byte("abcd")),
		indexSig("b", []byte("xy")),
		indexSig("c", []byte("efgh")),
		nil,
		indexSig("d", nil),
	}
	idx := BuildIndex(DefaultHashParams(), sigs)

	if idx.Len() != 5 {
		t.Errorf("Len() = %d, want 5", idx.Len())
	}
	groups := idx.Groups()
	if len(groups) != 2 {
		t.Fatalf("len(Groups()) = %d, want 2", len(groups))
	}
	if groups[0].Window != 2 || groups[0].Size() != 1 {
		t.Errorf("groups[0] = window %d size %d, want window 2 size 1", groups[0].Window, groups[0].Size())
	}
	if groups[1].Window != 4 || groups[1].Size() != 2 {
		t.Errorf("groups[1] = window %d size %d, want window 4 size 2", groups[1].Window, groups[1].Size())
	}
	if groups[1].Power != DefaultHashParams().Power(4) {
		t.Errorf("groups[1].Power = %d, want %d", groups[1].Power, DefaultHashParams().Power(4))
	}

	defects := idx.Defects()
	if len(defects) != 2 {
		t.Fatalf("len(Defects()) = %d, want 2", len(defects))
	}
	if defects[0].Position != 3 || defects[1].Position != 4 {
		t.Errorf("defect positions = %d,%d, want 3,4", defects[0].Position, defects[1].Position)
	}
	if !errors.Is(defects[1].Err, types.ErrEmptyAnchor) {
		t.Errorf("defects[1].Err = %v, want ErrEmptyAnchor", defects[1].Err)
	}
}

func TestScanGroup_CollisionRejected(t *testing.T) {
	t.Parallel()

	params := DefaultHashParams()
	genuine := indexSig("real", []byte("RealSig!"))
	impostor := indexSig("impostor", []byte("Impostor"))
	sigs := []*types.Signature{impostor, genuine}

	idx := BuildIndex(params, sigs)
	g := idx.Groups()[0]

	// Rehome the impostor under the real anchor's hash so both share a bucket.
	genuineHash := params.Hash(genuine.Anchor)
	impHash := params.Hash(impostor.Anchor)
	var imp *candidate
	for _, c := range g.table[impHash] {
		if c.sig.ID == "impostor" {
			imp = c
		}
	}
	delete(g.table, impHash)
	g.table[genuineHash] = append([]*candidate{imp}, g.table[genuineHash]...)

	counters := &engineCounters{}
	scanner := &MatchScanner{
		params:   params,
		verifier: &MatchVerifier{stats: counters},
		stats:    counters,
	}
	outcomes := make([]Outcome, len(sigs))
	if err := scanner.scanGroup(context.Background(), []byte("..RealSig!.."), g, outcomes); err != nil {
		t.Fatalf("scanGroup() error: %v", err)
	}

	if len(outcomes[0].Occurrences) != 0 {
		t.Errorf("impostor occurrences = %v, want none", outcomes[0].Occurrences)
	}
	if len(outcomes[1].Occurrences) != 1 || outcomes[1].Occurrences[0].Start != 2 {
		t.Errorf("genuine occurrences = %v, want one at 2", outcomes[1].Occurrences)
	}
	if counters.collisions.Load() == 0 {
		t.Error("collisions = 0, want > 0")
	}

	records := (&ResultAggregator{}).aggregate(sigs, outcomes, nil)
	if records[0].Matched || records[0].OffsetFromStart != nil {
		t.Errorf("impostor record = %+v, want unmatched with null offsets", records[0])
	}
	if !records[1].Matched {
		t.Errorf("genuine record = %+v, want matched", records[1])
	}
}
