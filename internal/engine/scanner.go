// ABOUTME: MatchScanner slides a rolling hash window across content per window group
// ABOUTME: Hash hits are handed to the verifier; the earliest in-window offset wins

package engine

import (
	"context"
)

// MatchMode selects how many occurrences are reported per signature.
type MatchMode int

const (
	// MatchFirst reports the lowest in-window verified offset per signature,
	// falling back to the lowest out-of-window one when none is in bounds.
	MatchFirst MatchMode = iota
	// MatchAll reports every verified occurrence per signature.
	MatchAll
)

// String returns the string representation of the match mode.
func (m MatchMode) String() string {
	switch m {
	case MatchAll:
		return "all"
	default:
		return "first"
	}
}

// ParseMatchMode parses "first" or "all". Empty input yields MatchFirst.
func ParseMatchMode(s string) (MatchMode, bool) {
	switch s {
	case "", "first":
		return MatchFirst, true
	case "all":
		return MatchAll, true
	default:
		return MatchFirst, false
	}
}

// ctxCheckInterval is how many window slides happen between cancellation checks.
const ctxCheckInterval = 1 << 16

// Outcome collects the scan result for one signature position.
type Outcome struct {
	Occurrences []Occurrence

	// Err is set when verification failed; the signature reports matched=false.
	Err error
}

// MatchScanner runs the sliding window over one group.
type MatchScanner struct {
	params   HashParams
	verifier *MatchVerifier
	mode     MatchMode
	stats    *engineCounters
}

// scanGroup scans content for every signature in g, writing into outcomes at
// each candidate's snapshot position. Groups own disjoint positions so
// concurrent calls never touch the same element.
func (s *MatchScanner) scanGroup(ctx context.Context, content []byte, g *Group, outcomes []Outcome) error {
	w := g.Window
	n := len(content)
	if n < w || len(g.candidates) == 0 {
		return nil
	}

	resolved := make([]bool, len(g.candidates))
	unresolved := len(g.candidates)

	h := s.params.Hash(content[:w])
	for o := 0; ; o++ {
		if cands, ok := g.table[h]; ok {
			if s.stats != nil {
				s.stats.hashHits.Add(1)
			}
			for _, c := range cands {
				if resolved[c.slot] {
					continue
				}

				occ, res, err := s.verifier.verify(content, o, c)
				switch res {
				case verdictVerified:
					if s.mode == MatchAll {
						outcomes[c.pos].Occurrences = append(outcomes[c.pos].Occurrences, occ)
						break
					}
					if occ.InBounds {
						outcomes[c.pos].Occurrences = []Occurrence{occ}
						resolved[c.slot] = true
						unresolved--
					} else if len(outcomes[c.pos].Occurrences) == 0 {
						outcomes[c.pos].Occurrences = []Occurrence{occ}
					}
				case verdictFailed:
					outcomes[c.pos].Err = err
					resolved[c.slot] = true
					unresolved--
				}
			}
			if unresolved == 0 {
				return nil
			}
		}

		if o+w >= n {
			return nil
		}
		if o%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		h = s.params.Roll(h, content[o], content[o+w], g.Power)
	}
}
