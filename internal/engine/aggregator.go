// ABOUTME: ResultAggregator turns per-signature outcomes into an ordered ScanReport
// ABOUTME: Records follow snapshot order; defects and misses report null offsets

package engine

import (
	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// ResultAggregator assembles reports.
type ResultAggregator struct {
	mode MatchMode
}

// aggregate builds one or more records per snapshot position.
// A verified but out-of-bounds occurrence keeps its offsets with matched=false.
func (a *ResultAggregator) aggregate(sigs []*types.Signature, outcomes []Outcome, defective map[int]bool) []types.MatchRecord {
	records := make([]types.MatchRecord, 0, len(sigs))

	for pos, sig := range sigs {
		if sig == nil {
			continue
		}

		out := outcomes[pos]
		if defective[pos] || out.Err != nil || len(out.Occurrences) == 0 {
			records = append(records, types.NewUnmatchedRecord(sig))
			continue
		}

		occs := out.Occurrences
		if a.mode == MatchFirst {
			occs = occs[:1]
		}
		for _, occ := range occs {
			records = append(records, types.MatchRecord{
				SignatureID:     sig.ID,
				ThreatName:      sig.ThreatName,
				OffsetFromStart: types.IntPtr(occ.Start),
				OffsetFromEnd:   types.IntPtr(occ.End),
				Matched:         occ.InBounds,
			})
		}
	}

	return records
}
