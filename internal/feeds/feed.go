// ABOUTME: Feed interface for signature sources and the parse result shape
// ABOUTME: Rows that fail to parse are reported, not fatal to the whole feed

package feeds

import (
	"context"
	"fmt"
	"io"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// Feed parses signatures from a stream.
type Feed interface {
	Name() string
	Parse(ctx context.Context, r io.Reader) (*FeedResult, error)
}

// RowError describes one rejected row.
type RowError struct {
	Row int
	Err error
}

// Error implements the error interface.
func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// Unwrap returns the underlying error.
func (e RowError) Unwrap() error {
	return e.Err
}

// FeedResult contains the parsed signatures and rejected rows.
type FeedResult struct {
	Name       string
	Signatures []*types.Signature
	Errors     []RowError
}

// ForFormat returns the feed parser for a format name: csv or json.
func ForFormat(format, name string) (Feed, error) {
	switch format {
	case "csv", "":
		return NewCSVFeed(name), nil
	case "json":
		return NewJSONFeed(name), nil
	default:
		return nil, fmt.Errorf("unsupported feed format %q: must be csv or json", format)
	}
}
