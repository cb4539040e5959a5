// ABOUTME: File type for uploaded content tracked by the file store
// ABOUTME: Metadata only; content bytes are stored under a separate key

package types

import (
	"time"

	"github.com/google/uuid"
)

// File is the metadata record of stored content.
type File struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Size       int64         `json:"size"`
	SHA256     string        `json:"sha256"`
	ScanResult []MatchRecord `json:"scan_result"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// NewFile creates a File record for the given content.
func NewFile(name string, content []byte) *File {
	now := time.Now().UTC()
	return &File{
		ID:        uuid.New().String(),
		Name:      name,
		Size:      int64(len(content)),
		SHA256:    SHA256Hex(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Scanned returns true if a scan result has been persisted.
func (f *File) Scanned() bool {
	return f.ScanResult != nil
}
