// ABOUTME: Signature type describing a byte pattern to detect in file content
// ABOUTME: Anchor bytes probe the rolling hash; the remainder is checked by digest

package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SignatureStatus is the lifecycle state of a catalog signature.
type SignatureStatus string

const (
	// SignatureStatusActual marks a signature that participates in scanning.
	SignatureStatusActual SignatureStatus = "ACTUAL"
	// SignatureStatusDeleted marks a soft-deleted signature.
	SignatureStatusDeleted SignatureStatus = "DELETED"
	// SignatureStatusCorrupted marks a signature whose record failed integrity checks.
	SignatureStatusCorrupted SignatureStatus = "CORRUPTED"
)

// ParseSignatureStatus parses a status string, ignoring case.
func ParseSignatureStatus(s string) (SignatureStatus, error) {
	switch st := SignatureStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case SignatureStatusActual, SignatureStatusDeleted, SignatureStatusCorrupted:
		return st, nil
	default:
		return "", fmt.Errorf("invalid signature status %q: must be ACTUAL, DELETED, or CORRUPTED", s)
	}
}

// IsActive returns true if signatures in this state are scanned.
func (s SignatureStatus) IsActive() bool {
	return s == SignatureStatusActual
}

// Validation errors returned by Signature.Validate.
var (
	ErrEmptyAnchor        = errors.New("anchor must not be empty")
	ErrNegativeRemainder  = errors.New("remainder_length must not be negative")
	ErrNegativeOffset     = errors.New("offsets must not be negative")
	ErrInvertedOffsets    = errors.New("offset_end must be >= offset_start")
	ErrMissingThreatName  = errors.New("threat_name is required")
	ErrMissingSignatureID = errors.New("id is required")
)

// Signature is a cataloged byte pattern.
type Signature struct {
	ID         string `json:"id"`
	ThreatName string `json:"threat_name"`

	// Anchor is the fixed byte prefix hashed by the scanner; len(Anchor) is the window size.
	Anchor []byte `json:"anchor"`

	// Remainder bytes immediately following the anchor, verified by digest.
	RemainderLength int    `json:"remainder_length"`
	RemainderDigest string `json:"remainder_digest"`

	FileType string `json:"file_type,omitempty"`

	// Optional inclusive bounds on where a match may sit in the file.
	OffsetStart *int `json:"offset_start,omitempty"`
	OffsetEnd   *int `json:"offset_end,omitempty"`

	Status    SignatureStatus `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewSignature creates an ACTUAL signature from the full pattern bytes.
// The first anchorLen bytes become the anchor; the rest is stored as a SHA-256 digest.
func NewSignature(threatName string, pattern []byte, anchorLen int) (*Signature, error) {
	if threatName == "" {
		return nil, ErrMissingThreatName
	}
	if anchorLen <= 0 || anchorLen > len(pattern) {
		return nil, fmt.Errorf("anchor length %d out of range for %d byte pattern", anchorLen, len(pattern))
	}

	anchor := make([]byte, anchorLen)
	copy(anchor, pattern[:anchorLen])
	rest := pattern[anchorLen:]

	return &Signature{
		ID:              uuid.New().String(),
		ThreatName:      threatName,
		Anchor:          anchor,
		RemainderLength: len(rest),
		RemainderDigest: SHA256Hex(rest),
		Status:          SignatureStatusActual,
		UpdatedAt:       time.Now().UTC(),
	}, nil
}

// WithOffsets sets the offset bounds and returns the signature for chaining.
func (s *Signature) WithOffsets(start, end *int) *Signature {
	s.OffsetStart = start
	s.OffsetEnd = end
	return s
}

// WithFileType sets the file type and returns the signature for chaining.
func (s *Signature) WithFileType(fileType string) *Signature {
	s.FileType = fileType
	return s
}

// WindowSize returns the rolling hash window for this signature.
func (s *Signature) WindowSize() int {
	return len(s.Anchor)
}

// Validate checks the structural invariants the scanner relies on.
// The remainder digest is checked lazily by the verifier.
func (s *Signature) Validate() error {
	if s.ID == "" {
		return ErrMissingSignatureID
	}
	if len(s.Anchor) == 0 {
		return ErrEmptyAnchor
	}
	if s.RemainderLength < 0 {
		return ErrNegativeRemainder
	}
	if (s.OffsetStart != nil && *s.OffsetStart < 0) || (s.OffsetEnd != nil && *s.OffsetEnd < 0) {
		return ErrNegativeOffset
	}
	if s.OffsetStart != nil && s.OffsetEnd != nil && *s.OffsetEnd < *s.OffsetStart {
		return ErrInvertedOffsets
	}
	return nil
}

// Clone returns a deep copy so snapshots are isolated from later catalog edits.
func (s *Signature) Clone() *Signature {
	c := *s
	c.Anchor = append([]byte(nil), s.Anchor...)
	if s.OffsetStart != nil {
		v := *s.OffsetStart
		c.OffsetStart = &v
	}
	if s.OffsetEnd != nil {
		v := *s.OffsetEnd
		c.OffsetEnd = &v
	}
	return &c
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
