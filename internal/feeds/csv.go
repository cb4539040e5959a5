// ABOUTME: Header-driven CSV signature feed
// ABOUTME: Rows give either anchor+remainder digest or a full hex pattern split at anchor_length

package feeds

import (
	"context"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// Recognized CSV columns.
const (
	ColumnID              = "id"
	ColumnThreatName      = "threat_name"
	ColumnAnchor          = "anchor"
	ColumnRemainderLength = "remainder_length"
	ColumnRemainderDigest = "remainder_digest"
	ColumnPattern         = "pattern"
	ColumnAnchorLength    = "anchor_length"
	ColumnFileType        = "file_type"
	ColumnOffsetStart     = "offset_start"
	ColumnOffsetEnd       = "offset_end"
	ColumnStatus          = "status"
)

// DefaultAnchorLength is used for pattern rows without anchor_length.
const DefaultAnchorLength = 8

var errNoHeader = errors.New("feed has no header row")

// CSVFeed parses CSV signature feeds. Lines starting with # are comments.
type CSVFeed struct {
	name string
}

// NewCSVFeed creates a CSV feed parser.
func NewCSVFeed(name string) *CSVFeed {
	return &CSVFeed{name: name}
}

// Name returns the feed name.
func (f *CSVFeed) Name() string {
	return f.name
}

// Parse reads every row. Malformed rows land in FeedResult.Errors.
func (f *CSVFeed) Parse(ctx context.Context, r io.Reader) (*FeedResult, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols[ColumnThreatName]; !ok {
		return nil, fmt.Errorf("header is missing %q", ColumnThreatName)
	}

	result := &FeedResult{Name: f.name}
	for row := 2; ; row++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: row, Err: err})
			continue
		}

		sig, err := parseRow(record, cols)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: row, Err: err})
			continue
		}
		result.Signatures = append(result.Signatures, sig)
	}

	return result, nil
}

func parseRow(record []string, cols map[string]int) (*types.Signature, error) {
	get := func(col string) string {
		i, ok := cols[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	name := get(ColumnThreatName)
	if name == "" {
		return nil, types.ErrMissingThreatName
	}

	var sig *types.Signature
	if pattern := get(ColumnPattern); pattern != "" {
		raw, err := hex.DecodeString(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern: %w", err)
		}
		anchorLen := DefaultAnchorLength
		if v := get(ColumnAnchorLength); v != "" {
			if anchorLen, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("anchor_length: %w", err)
			}
		}
		if anchorLen > len(raw) {
			anchorLen = len(raw)
		}
		if sig, err = types.NewSignature(name, raw, anchorLen); err != nil {
			return nil, err
		}
	} else {
		anchor, err := hex.DecodeString(get(ColumnAnchor))
		if err != nil {
			return nil, fmt.Errorf("anchor: %w", err)
		}
		remLen, err := strconv.Atoi(get(ColumnRemainderLength))
		if err != nil {
			return nil, fmt.Errorf("remainder_length: %w", err)
		}
		sig = &types.Signature{
			ID:              uuid.New().String(),
			ThreatName:      name,
			Anchor:          anchor,
			RemainderLength: remLen,
			RemainderDigest: strings.ToLower(get(ColumnRemainderDigest)),
			Status:          types.SignatureStatusActual,
		}
	}

	if id := get(ColumnID); id != "" {
		sig.ID = id
	}
	sig.FileType = get(ColumnFileType)

	var err error
	if sig.OffsetStart, err = optionalInt(get(ColumnOffsetStart)); err != nil {
		return nil, fmt.Errorf("offset_start: %w", err)
	}
	if sig.OffsetEnd, err = optionalInt(get(ColumnOffsetEnd)); err != nil {
		return nil, fmt.Errorf("offset_end: %w", err)
	}
	if s := get(ColumnStatus); s != "" {
		if sig.Status, err = types.ParseSignatureStatus(s); err != nil {
			return nil, err
		}
	}

	if err := sig.Validate(); err != nil {
		return nil, err
	}
	if _, err := types.ParseDigest(sig.RemainderDigest); err != nil {
		return nil, fmt.Errorf("remainder_digest: %w", err)
	}
	return sig, nil
}

func optionalInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
