// ABOUTME: Signature catalog commands: add, list, show, import, status, history, diff
// ABOUTME: Operates on the local catalog; the daemon's HTTP API offers the same operations

package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/api"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/feeds"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

func newSignaturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "signatures",
		Aliases: []string{"sigs"},
		Short:   "Manage the signature catalog",
	}

	cmd.AddCommand(newSigAddCmd())
	cmd.AddCommand(newSigListCmd())
	cmd.AddCommand(newSigShowCmd())
	cmd.AddCommand(newSigImportCmd())
	cmd.AddCommand(newSigStatusCmd())
	cmd.AddCommand(newSigHistoryCmd())
	cmd.AddCommand(newSigDiffCmd())
	cmd.AddCommand(newSigEICARCmd())

	return cmd
}

func newSigAddCmd() *cobra.Command {
	var (
		req         api.SignatureRequest
		offsetStart int
		offsetEnd   int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a signature",
		Long: `Add a signature from a full hex pattern, or from a hex anchor plus
remainder length and digest.

Examples:
  hikmaai-bytescan signatures add --threat Test.MZ --pattern 4d5a90005045 --anchor-length 2
  hikmaai-bytescan signatures add --threat Test.X --anchor 4d5a --remainder-length 4 \
    --remainder-digest 5d41402abc4b2a76b9719d911017c592`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("offset-start") {
				req.OffsetStart = types.IntPtr(offsetStart)
			}
			if cmd.Flags().Changed("offset-end") {
				req.OffsetEnd = types.IntPtr(offsetEnd)
			}

			sig, err := req.Signature()
			if err != nil {
				return fmt.Errorf("invalid signature: %w", err)
			}

			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				if err := rt.service.AddSignature(ctx, sig); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added signature %s (%s)\n", sig.ID, sig.ThreatName)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "signature ID (default: generated)")
	cmd.Flags().StringVar(&req.ThreatName, "threat", "", "threat name")
	cmd.Flags().StringVar(&req.Pattern, "pattern", "", "full pattern as hex")
	cmd.Flags().IntVar(&req.AnchorLength, "anchor-length", 0, "anchor length in bytes for --pattern (default: min(8, pattern length))")
	cmd.Flags().StringVar(&req.Anchor, "anchor", "", "anchor as hex")
	cmd.Flags().IntVar(&req.RemainderLength, "remainder-length", 0, "remainder length in bytes")
	cmd.Flags().StringVar(&req.RemainderDigest, "remainder-digest", "", "remainder digest as hex (MD5, SHA-1, or SHA-256)")
	cmd.Flags().StringVar(&req.FileType, "file-type", "", "file type tag")
	cmd.Flags().IntVar(&offsetStart, "offset-start", 0, "lowest allowed match start")
	cmd.Flags().IntVar(&offsetEnd, "offset-end", 0, "highest allowed match end")
	cmd.Flags().StringVar(&req.Status, "status", "", "initial status (default: ACTUAL)")
	_ = cmd.MarkFlagRequired("threat")

	return cmd
}

func newSigListCmd() *cobra.Command {
	var (
		status     string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List signatures in catalog order",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter types.SignatureStatus
			if status != "" {
				st, err := types.ParseSignatureStatus(status)
				if err != nil {
					return err
				}
				filter = st
			}

			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				sigs, err := rt.service.ListSignatures(ctx, filter)
				if err != nil {
					return err
				}
				if outputJSON {
					return writeJSON(cmd.OutOrStdout(), sigs)
				}
				renderSignatures(cmd.OutOrStdout(), sigs)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (ACTUAL, DELETED, CORRUPTED)")
	cmd.Flags().BoolVarP(&outputJSON, "json", "j", false, "output as JSON")

	return cmd
}

func newSigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				sig, err := rt.service.GetSignature(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), sig)
			})
		},
	}
}

func newSigImportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import <source>...",
		Short: "Import signatures from CSV or JSON feeds",
		Long: `Import signatures from feed sources. A source is an http(s) URL,
a gs://bucket/object URI (requires gcs.bucket), or a local path.

Rows that fail validation are reported and skipped; the rest are imported.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				if format == "" {
					format = rt.cfg.Feeds.Format
				}

				out := cmd.OutOrStdout()
				table := newTable(out, "SOURCE", "IMPORTED", "SKIPPED")
				var firstErr error
				for _, source := range args {
					result, err := rt.importSource(ctx, source, format)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", source, err)
						if firstErr == nil {
							firstErr = err
						}
						continue
					}
					for _, rowErr := range result.Errors {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", source, rowErr)
					}
					table.Append([]string{source, strconv.Itoa(result.Imported), strconv.Itoa(result.Skipped)})
				}
				table.Render()
				return firstErr
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "feed format: csv or json (default: feeds.format)")

	return cmd
}

func newSigStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <ACTUAL|DELETED|CORRUPTED>",
		Short: "Change a signature's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := types.ParseSignatureStatus(args[1])
			if err != nil {
				return err
			}

			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				sig, err := rt.service.SetSignatureStatus(ctx, args[0], status)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "signature %s is now %s\n", sig.ID, sig.Status)
				return nil
			})
		},
	}
}

func newSigHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show every recorded version of a signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				versions, err := rt.service.SignatureHistory(ctx, args[0])
				if err != nil {
					return err
				}

				table := newTable(cmd.OutOrStdout(), "VERSION", "ACTION", "STATUS", "AT")
				for _, v := range versions {
					table.Append([]string{
						strconv.Itoa(v.Version),
						v.Action,
						string(v.Signature.Status),
						v.ChangedAt.Format(time.RFC3339),
					})
				}
				table.Render()
				return nil
			})
		},
	}
}

func newSigDiffCmd() *cobra.Command {
	var (
		since      string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "List signatures changed since a point in time",
		Long: `List signatures created or modified since --since, which is either an
RFC 3339 timestamp or a duration back from now (e.g. 24h).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cutoff, err := parseSince(since, time.Now())
			if err != nil {
				return err
			}

			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				sigs, err := rt.service.SignaturesChangedSince(ctx, cutoff)
				if err != nil {
					return err
				}
				if outputJSON {
					return writeJSON(cmd.OutOrStdout(), sigs)
				}
				renderSignatures(cmd.OutOrStdout(), sigs)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&since, "since", "24h", "RFC 3339 timestamp or duration")
	cmd.Flags().BoolVarP(&outputJSON, "json", "j", false, "output as JSON")

	return cmd
}

// parseSince accepts an RFC 3339 timestamp or a duration before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("invalid --since %q: want RFC 3339 or a positive duration", s)
	}
	return now.Add(-d), nil
}

func newSigEICARCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eicar",
		Short: "Add the EICAR test signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				sig := feeds.EICARSignature()
				if err := rt.service.AddSignature(ctx, sig); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added signature %s (%s)\n", sig.ID, sig.ThreatName)
				return nil
			})
		},
	}
}
