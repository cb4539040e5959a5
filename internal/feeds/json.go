// ABOUTME: JSON signature feed: an array of signature objects
// ABOUTME: Same validation as the CSV feed; missing IDs are generated

package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// JSONFeed parses a JSON array of signatures.
type JSONFeed struct {
	name string
}

// NewJSONFeed creates a JSON feed parser.
func NewJSONFeed(name string) *JSONFeed {
	return &JSONFeed{name: name}
}

// Name returns the feed name.
func (f *JSONFeed) Name() string {
	return f.name
}

// Parse decodes the array element by element so one bad entry does not
// discard the rest.
func (f *JSONFeed) Parse(ctx context.Context, r io.Reader) (*FeedResult, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding feed: %w", err)
	}

	result := &FeedResult{Name: f.name}
	for i, msg := range raw {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var sig types.Signature
		if err := json.Unmarshal(msg, &sig); err != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Err: err})
			continue
		}
		if sig.ID == "" {
			sig.ID = uuid.New().String()
		}
		if sig.Status == "" {
			sig.Status = types.SignatureStatusActual
		} else {
			status, err := types.ParseSignatureStatus(string(sig.Status))
			if err != nil {
				result.Errors = append(result.Errors, RowError{Row: i + 1, Err: err})
				continue
			}
			sig.Status = status
		}
		if sig.ThreatName == "" {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Err: types.ErrMissingThreatName})
			continue
		}
		if err := sig.Validate(); err != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Err: err})
			continue
		}
		if _, err := types.ParseDigest(sig.RemainderDigest); err != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Err: fmt.Errorf("remainder_digest: %w", err)})
			continue
		}
		result.Signatures = append(result.Signatures, &sig)
	}

	return result, nil
}
