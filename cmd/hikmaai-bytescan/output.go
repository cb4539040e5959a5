// ABOUTME: Output helpers for CLI commands: JSON encoding and tables
// ABOUTME: Tables are rendered with tablewriter; offsets print as "-" when unmatched

package main

import (
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	return table
}

func formatOffset(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

// renderReport prints one row per signature record.
func renderReport(w io.Writer, label string, report *types.ScanReport) {
	table := newTable(w, "FILE", "SIGNATURE", "THREAT", "MATCHED", "START", "END")
	for _, rec := range report.Records {
		table.Append([]string{
			label,
			rec.SignatureID,
			rec.ThreatName,
			strconv.FormatBool(rec.Matched),
			formatOffset(rec.OffsetFromStart),
			formatOffset(rec.OffsetFromEnd),
		})
	}
	table.Render()
}

func renderSignatures(w io.Writer, sigs []*types.Signature) {
	table := newTable(w, "ID", "THREAT", "STATUS", "WINDOW", "FILE TYPE", "OFFSETS", "UPDATED")
	for _, sig := range sigs {
		table.Append([]string{
			sig.ID,
			sig.ThreatName,
			string(sig.Status),
			strconv.Itoa(sig.WindowSize()),
			sig.FileType,
			formatOffset(sig.OffsetStart) + ".." + formatOffset(sig.OffsetEnd),
			humanize.Time(sig.UpdatedAt),
		})
	}
	table.Render()
}

func renderFiles(w io.Writer, files []*types.File) {
	table := newTable(w, "ID", "NAME", "SIZE", "SCANNED", "MATCHES", "CREATED")
	for _, f := range files {
		matches := 0
		for _, rec := range f.ScanResult {
			if rec.Matched {
				matches++
			}
		}
		table.Append([]string{
			f.ID,
			f.Name,
			humanize.Bytes(uint64(f.Size)),
			strconv.FormatBool(f.Scanned()),
			strconv.Itoa(matches),
			f.CreatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
}
