// ABOUTME: Catalog snapshot fingerprint used to key cached reports
// ABOUTME: xxhash over every field that influences matching, in snapshot order

package engine

import (
	"encoding/binary"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// Fingerprint returns a stable identifier for a signature snapshot.
// Two snapshots with the same fingerprint produce identical reports.
func Fingerprint(sigs []*types.Signature) string {
	d := xxhash.New()
	var buf [8]byte

	writeInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = d.Write(buf[:])
	}
	writeBytes := func(b []byte) {
		writeInt(int64(len(b)))
		_, _ = d.Write(b)
	}
	writeOpt := func(p *int) {
		if p == nil {
			writeInt(-1)
			return
		}
		writeInt(int64(*p))
	}

	writeInt(int64(len(sigs)))
	for _, sig := range sigs {
		if sig == nil {
			writeInt(-1)
			continue
		}
		writeBytes([]byte(sig.ID))
		writeBytes([]byte(sig.ThreatName))
		writeBytes(sig.Anchor)
		writeInt(int64(sig.RemainderLength))
		writeBytes([]byte(sig.RemainderDigest))
		writeOpt(sig.OffsetStart)
		writeOpt(sig.OffsetEnd)
		writeBytes([]byte(sig.Status))
	}

	return strconv.FormatUint(d.Sum64(), 16)
}
