// ABOUTME: Digest type for remainder verification and file content hashes
// ABOUTME: Detects SHA256/SHA1/MD5 by hex length and computes matching sums

package types

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashType represents the type of hash algorithm.
type HashType int

const (
	// HashTypeUnknown represents an unknown or invalid hash type.
	HashTypeUnknown HashType = iota
	// HashTypeSHA256 represents a SHA-256 hash (64 hex characters).
	HashTypeSHA256
	// HashTypeSHA1 represents a SHA-1 hash (40 hex characters).
	HashTypeSHA1
	// HashTypeMD5 represents an MD5 hash (32 hex characters).
	HashTypeMD5
)

// Hash length constants.
const (
	SHA256Length = 64
	SHA1Length   = 40
	MD5Length    = 32
)

// String returns the string representation of the hash type.
func (ht HashType) String() string {
	switch ht {
	case HashTypeSHA256:
		return "sha256"
	case HashTypeSHA1:
		return "sha1"
	case HashTypeMD5:
		return "md5"
	default:
		return "unknown"
	}
}

// Digest is a parsed hex digest with its detected algorithm.
// Sum holds the decoded bytes so verification compares raw digests.
type Digest struct {
	Type  HashType `json:"type"`
	Value string   `json:"value"`
	Sum   []byte   `json:"-"`
}

// ParseDigest parses a hex digest and detects its algorithm by length.
// It normalizes the digest to lowercase and trims whitespace.
func ParseDigest(s string) (Digest, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if s == "" {
		return Digest{}, fmt.Errorf("empty digest")
	}

	var hashType HashType
	switch len(s) {
	case SHA256Length:
		hashType = HashTypeSHA256
	case SHA1Length:
		hashType = HashTypeSHA1
	case MD5Length:
		hashType = HashTypeMD5
	default:
		return Digest{}, fmt.Errorf("invalid digest length %d: must be %d (SHA256), %d (SHA1), or %d (MD5)",
			len(s), SHA256Length, SHA1Length, MD5Length)
	}

	sum, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid hex characters in digest")
	}

	return Digest{Type: hashType, Value: s, Sum: sum}, nil
}

// Compute returns the raw digest of data using the digest's algorithm.
func (d Digest) Compute(data []byte) []byte {
	return SumBytes(d.Type, data)
}

// SumBytes computes the raw digest of data for the given algorithm.
// Unknown algorithms yield nil.
func SumBytes(ht HashType, data []byte) []byte {
	switch ht {
	case HashTypeSHA256:
		s := sha256.Sum256(data)
		return s[:]
	case HashTypeSHA1:
		s := sha1.Sum(data)
		return s[:]
	case HashTypeMD5:
		s := md5.Sum(data)
		return s[:]
	default:
		return nil
	}
}

// SHA256Hex returns the lowercase hex SHA-256 of data.
func SHA256Hex(data []byte) string {
	s := sha256.Sum256(data)
	return hex.EncodeToString(s[:])
}
