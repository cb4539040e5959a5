// ABOUTME: Tests for the CSV and JSON signature feeds
// ABOUTME: Covers both row shapes, offsets, status, and per-row rejection

package feeds

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

const sampleCSV = `# test feed
id,threat_name,anchor,remainder_length,remainder_digest,pattern,anchor_length,file_type,offset_start,offset_end,status
sig-a,Test.Anchor,4d5a9000,0,e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855,,,exe,0,64,
sig-b,Test.Pattern,,,,deadbeefcafe,2,,,,deleted
,Test.NoID,,,,0102030405060708090a,,,,,
sig-c,,4d5a,0,e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855,,,,,,
sig-d,Test.BadHex,zz,0,e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855,,,,,,
sig-e,Test.BadDigest,4d5a,3,abc,,,,,,
sig-f,Test.Inverted,4d5a,0,e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855,,,,10,2,
`

func TestCSVFeed_Parse(t *testing.T) {
	t.Parallel()

	result, err := NewCSVFeed("test").Parse(context.Background(), strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if got := len(result.Signatures); got != 3 {
		t.Fatalf("len(Signatures) = %d, want 3", got)
	}
	if got := len(result.Errors); got != 4 {
		t.Errorf("len(Errors) = %d, want 4: %v", got, result.Errors)
	}

	a := result.Signatures[0]
	if a.ID != "sig-a" || string(a.Anchor) != "\x4d\x5a\x90\x00" || a.FileType != "exe" {
		t.Errorf("sig-a = %+v", a)
	}
	if a.OffsetStart == nil || *a.OffsetStart != 0 || a.OffsetEnd == nil || *a.OffsetEnd != 64 {
		t.Errorf("sig-a offsets = %v, %v", a.OffsetStart, a.OffsetEnd)
	}
	if a.Status != types.SignatureStatusActual {
		t.Errorf("sig-a Status = %q, want ACTUAL", a.Status)
	}

	b := result.Signatures[1]
	if string(b.Anchor) != "\xde\xad" || b.RemainderLength != 4 {
		t.Errorf("sig-b anchor/remainder = %x/%d", b.Anchor, b.RemainderLength)
	}
	if b.RemainderDigest != types.SHA256Hex([]byte{0xbe, 0xef, 0xca, 0xfe}) {
		t.Errorf("sig-b RemainderDigest = %s", b.RemainderDigest)
	}
	if b.Status != types.SignatureStatusDeleted {
		t.Errorf("sig-b Status = %q, want DELETED", b.Status)
	}

	c := result.Signatures[2]
	if c.ID == "" {
		t.Error("row without id should get a generated id")
	}
	if len(c.Anchor) != DefaultAnchorLength || c.RemainderLength != 2 {
		t.Errorf("default anchor split = %d/%d", len(c.Anchor), c.RemainderLength)
	}

	var rowErr RowError
	if !errors.As(result.Errors[0], &rowErr) || rowErr.Row != 5 {
		t.Errorf("first error row = %d, want 5", rowErr.Row)
	}
	if !errors.Is(result.Errors[0], types.ErrMissingThreatName) {
		t.Errorf("first error = %v, want ErrMissingThreatName", result.Errors[0])
	}
	if !errors.Is(result.Errors[3], types.ErrInvertedOffsets) {
		t.Errorf("last error = %v, want ErrInvertedOffsets", result.Errors[3])
	}
}

func TestCSVFeed_HeaderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "comments only", input: "# nothing here\n"},
		{name: "missing threat_name", input: "id,anchor\nx,00\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := NewCSVFeed("test").Parse(context.Background(), strings.NewReader(tt.input)); err == nil {
				t.Error("Parse() should fail")
			}
		})
	}
}

func TestCSVFeed_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVFeed("test").Parse(ctx, strings.NewReader(sampleCSV))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Parse() error = %v, want context.Canceled", err)
	}
}

func TestJSONFeed_Parse(t *testing.T) {
	t.Parallel()

	// Anchors are base64 in JSON: "TVo=" is "MZ".
	input := `[
		{"id":"j1","threat_name":"Json.One","anchor":"TVo=","remainder_length":0,
		 "remainder_digest":"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"threat_name":"Json.NoID","anchor":"TVo=","remainder_length":0,
		 "remainder_digest":"E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855","status":"deleted"},
		{"id":"j3","anchor":"TVo=","remainder_digest":"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"id":"j4","threat_name":"Json.NoAnchor","remainder_digest":"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"id":"j5","threat_name":"Json.BadDigest","anchor":"TVo=","remainder_digest":"xyz"},
		"not an object"
	]`

	result, err := NewJSONFeed("json").Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := len(result.Signatures); got != 2 {
		t.Fatalf("len(Signatures) = %d, want 2", got)
	}
	if got := len(result.Errors); got != 4 {
		t.Errorf("len(Errors) = %d, want 4", got)
	}
	if result.Signatures[0].Status != types.SignatureStatusActual {
		t.Errorf("default status = %q, want ACTUAL", result.Signatures[0].Status)
	}
	if result.Signatures[1].ID == "" || result.Signatures[1].Status != types.SignatureStatusDeleted {
		t.Errorf("second signature = %+v", result.Signatures[1])
	}

	if _, err := NewJSONFeed("json").Parse(context.Background(), strings.NewReader("{")); err == nil {
		t.Error("Parse() should fail on malformed document")
	}
}

func TestForFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{format: "", want: "*feeds.CSVFeed"},
		{format: "csv", want: "*feeds.CSVFeed"},
		{format: "json", want: "*feeds.JSONFeed"},
		{format: "yara", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			feed, err := ForFormat(tt.format, "x")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ForFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if feed.Name() != "x" {
				t.Errorf("Name() = %q, want x", feed.Name())
			}
			switch feed.(type) {
			case *CSVFeed:
				if tt.want != "*feeds.CSVFeed" {
					t.Errorf("got CSVFeed, want %s", tt.want)
				}
			case *JSONFeed:
				if tt.want != "*feeds.JSONFeed" {
					t.Errorf("got JSONFeed, want %s", tt.want)
				}
			}
		})
	}
}
