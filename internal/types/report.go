// ABOUTME: ScanReport and MatchRecord types produced by one scan invocation
// ABOUTME: MatchRecord JSON field names are the persisted wire contract

package types

import (
	"encoding/json"
	"time"
)

// MatchRecord is the outcome for one signature.
// Offsets are nil when the anchor was never verified in the content.
type MatchRecord struct {
	SignatureID     string `json:"signatureId"`
	ThreatName      string `json:"threatName"`
	OffsetFromStart *int   `json:"offsetFromStart"`
	OffsetFromEnd   *int   `json:"offsetFromEnd"`
	Matched         bool   `json:"matched"`
}

// NewUnmatchedRecord returns a record with null offsets.
func NewUnmatchedRecord(sig *Signature) MatchRecord {
	return MatchRecord{
		SignatureID: sig.ID,
		ThreatName:  sig.ThreatName,
	}
}

// ScanReport is the ordered per-signature outcome of one scan.
// It is built once and never mutated afterwards.
type ScanReport struct {
	FileID             string        `json:"file_id,omitempty"`
	Records            []MatchRecord `json:"records"`
	ScannedAt          time.Time     `json:"scanned_at"`
	CatalogFingerprint string        `json:"catalog_fingerprint,omitempty"`
	BytesScanned       int           `json:"bytes_scanned"`
}

// NewScanReport creates a report from records in catalog order.
func NewScanReport(fileID string, records []MatchRecord, bytesScanned int) *ScanReport {
	if records == nil {
		records = []MatchRecord{}
	}
	return &ScanReport{
		FileID:       fileID,
		Records:      records,
		ScannedAt:    time.Now().UTC(),
		BytesScanned: bytesScanned,
	}
}

// WithFingerprint sets the catalog fingerprint and returns the report for chaining.
func (r *ScanReport) WithFingerprint(fp string) *ScanReport {
	r.CatalogFingerprint = fp
	return r
}

// WithFileID returns a copy of the report bound to fileID.
// Cached reports are shared, so callers never rebind them in place.
func (r *ScanReport) WithFileID(fileID string) *ScanReport {
	c := *r
	c.FileID = fileID
	c.Records = append([]MatchRecord(nil), r.Records...)
	return &c
}

// Infected returns true if any signature matched.
func (r *ScanReport) Infected() bool {
	for _, rec := range r.Records {
		if rec.Matched {
			return true
		}
	}
	return false
}

// MatchedCount returns the number of matched records.
func (r *ScanReport) MatchedCount() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Matched {
			n++
		}
	}
	return n
}

// PersistedPayload returns the JSON array stored as a file's scan state.
func (r *ScanReport) PersistedPayload() ([]byte, error) {
	return json.Marshal(r.Records)
}
