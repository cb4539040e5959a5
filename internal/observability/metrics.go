// ABOUTME: In-process scan metrics: counters, cache effectiveness, and latency percentiles
// ABOUTME: Latencies are tracked per request source (http, nats, cli)

package observability

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// maxLatencySamples bounds the retained latency window.
const maxLatencySamples = 10000

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	ScansTotal      int64
	ScansFailed     int64
	PersistFailures int64
	InfectedFiles   int64
	MatchedRecords  int64
	BytesScanned    int64
	CacheHits       int64
	CacheMisses     int64
	ActiveScans     int64
	Timestamp       time.Time
}

// String returns a one-line summary.
func (s *MetricsSnapshot) String() string {
	return fmt.Sprintf(
		"scans=%d failed=%d persist_failures=%d infected=%d matched=%d bytes=%d cache=%d/%d active=%d",
		s.ScansTotal, s.ScansFailed, s.PersistFailures, s.InfectedFiles, s.MatchedRecords,
		s.BytesScanned, s.CacheHits, s.CacheHits+s.CacheMisses, s.ActiveScans,
	)
}

// LatencyPercentiles summarizes a latency distribution.
type LatencyPercentiles struct {
	Count int
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// ScanMetrics collects scan pipeline metrics. Safe for concurrent use.
type ScanMetrics struct {
	scansTotal      atomic.Int64
	scansFailed     atomic.Int64
	persistFailures atomic.Int64
	infectedFiles   atomic.Int64
	matchedRecords  atomic.Int64
	bytesScanned    atomic.Int64
	cacheHits       atomic.Int64
	cacheMisses     atomic.Int64
	activeScans     atomic.Int64

	mu        sync.Mutex
	latencies map[string][]time.Duration
}

// NewScanMetrics creates an empty collector.
func NewScanMetrics() *ScanMetrics {
	return &ScanMetrics{latencies: make(map[string][]time.Duration)}
}

// ScanStarted marks a scan in flight. Call the returned func when it ends.
func (m *ScanMetrics) ScanStarted() func() {
	m.activeScans.Add(1)
	return func() { m.activeScans.Add(-1) }
}

// RecordScan records a finished scan that produced a report.
func (m *ScanMetrics) RecordScan(source string, d time.Duration, bytes, matched int, persisted bool) {
	m.scansTotal.Add(1)
	m.bytesScanned.Add(int64(bytes))
	m.matchedRecords.Add(int64(matched))
	if matched > 0 {
		m.infectedFiles.Add(1)
	}
	if !persisted {
		m.persistFailures.Add(1)
	}
	m.recordLatency(source, d)
}

// RecordFailure records a scan that produced no report.
func (m *ScanMetrics) RecordFailure(source string, d time.Duration) {
	m.scansTotal.Add(1)
	m.scansFailed.Add(1)
	m.recordLatency(source, d)
}

// RecordCache records a report cache lookup.
func (m *ScanMetrics) RecordCache(hit bool) {
	if hit {
		m.cacheHits.Add(1)
	} else {
		m.cacheMisses.Add(1)
	}
}

func (m *ScanMetrics) recordLatency(source string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	samples := append(m.latencies[source], d)
	if len(samples) > maxLatencySamples {
		samples = append([]time.Duration(nil), samples[len(samples)-maxLatencySamples/2:]...)
	}
	m.latencies[source] = samples
}

// Snapshot returns the current counters.
func (m *ScanMetrics) Snapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		ScansTotal:      m.scansTotal.Load(),
		ScansFailed:     m.scansFailed.Load(),
		PersistFailures: m.persistFailures.Load(),
		InfectedFiles:   m.infectedFiles.Load(),
		MatchedRecords:  m.matchedRecords.Load(),
		BytesScanned:    m.bytesScanned.Load(),
		CacheHits:       m.cacheHits.Load(),
		CacheMisses:     m.cacheMisses.Load(),
		ActiveScans:     m.activeScans.Load(),
		Timestamp:       time.Now().UTC(),
	}
}

// Latencies returns percentiles per source.
func (m *ScanMetrics) Latencies() map[string]LatencyPercentiles {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]LatencyPercentiles, len(m.latencies))
	for source, samples := range m.latencies {
		sorted := append([]time.Duration(nil), samples...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		out[source] = LatencyPercentiles{
			Count: len(sorted),
			P50:   percentile(sorted, 50),
			P90:   percentile(sorted, 90),
			P99:   percentile(sorted, 99),
			Max:   sorted[len(sorted)-1],
		}
	}
	return out
}

func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * len(sorted) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
