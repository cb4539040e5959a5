// ABOUTME: Message types for NATS request/reply communication
// ABOUTME: Defines scan requests for stored files and their replies

package queue

import (
	"time"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// Reply statuses.
const (
	StatusClean    = "clean"
	StatusInfected = "infected"
	StatusError    = "error"
)

// ScanRequest asks for a stored file to be scanned.
type ScanRequest struct {
	// ID of the stored file.
	FileID string `json:"file_id"`

	// Optional signature ID restricting the scan to one signature.
	SignatureID string `json:"signature_id,omitempty"`

	// Optional request ID for correlation.
	RequestID string `json:"request_id,omitempty"`

	// Optional metadata.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ScanResponse is the reply to a ScanRequest.
type ScanResponse struct {
	// Request ID for correlation.
	RequestID string `json:"request_id,omitempty"`

	FileID string `json:"file_id"`

	// Status is clean, infected, or error. A report whose persistence
	// failed still carries its status with persisted=false.
	Status string `json:"status"`

	// Records in catalog order; absent when no report was produced.
	Records []types.MatchRecord `json:"records,omitempty"`

	Persisted bool `json:"persisted"`

	// Error message and code when something failed.
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`

	// Scan time in milliseconds.
	ScanTimeMs float64 `json:"scan_time_ms"`

	ScannedAt time.Time `json:"scanned_at"`
}

// BatchScanRequest scans several files with the same restriction.
type BatchScanRequest struct {
	FileIDs     []string `json:"file_ids"`
	SignatureID string   `json:"signature_id,omitempty"`
	RequestID   string   `json:"request_id,omitempty"`
}

// BatchScanResponse is the reply to a BatchScanRequest.
type BatchScanResponse struct {
	RequestID string `json:"request_id,omitempty"`

	// Individual scan results in request order.
	Results []ScanResponse `json:"results"`

	// Total scan time in milliseconds.
	TotalTimeMs float64 `json:"total_time_ms"`
}
