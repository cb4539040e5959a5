// ABOUTME: Scan commands: ad-hoc local files, directory trees, and stored files by ID
// ABOUTME: Ad-hoc scans never store content; stored-file scans persist their result

package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan content against the signature catalog",
		Long: `Scan content against the local signature catalog.

Examples:
  # Scan local files without storing them
  hikmaai-bytescan scan file ./sample.bin ./other.bin

  # Scan a directory tree, restricted by glob
  hikmaai-bytescan scan dir ./uploads --include '**/*.exe' --include '**/*.dll'

  # Scan a stored file and persist the result
  hikmaai-bytescan scan id 5b0e4f0c-8a4e-4d1a-9a43-2f7d1d0c9e11`,
	}

	cmd.AddCommand(newScanFileCmd())
	cmd.AddCommand(newScanDirCmd())
	cmd.AddCommand(newScanIDCmd())

	return cmd
}

type scanFlags struct {
	signatureID string
	outputJSON  bool
}

func (f *scanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.signatureID, "signature", "", "restrict the scan to one signature ID")
	cmd.Flags().BoolVarP(&f.outputJSON, "json", "j", false, "output results as JSON")
}

// localResult is the CLI output for one ad-hoc scanned path.
type localResult struct {
	Path     string            `json:"path"`
	Infected bool              `json:"infected"`
	Report   *types.ScanReport `json:"report,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func newScanFileCmd() *cobra.Command {
	var flags scanFlags

	cmd := &cobra.Command{
		Use:   "file <path>...",
		Short: "Scan local files without storing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				results := make([]localResult, 0, len(args))
				for _, p := range args {
					results = append(results, scanLocal(ctx, rt, p, flags.signatureID))
				}
				return printLocalResults(cmd.OutOrStdout(), results, flags.outputJSON)
			})
		},
	}
	flags.register(cmd)

	return cmd
}

func newScanDirCmd() *cobra.Command {
	var (
		flags    scanFlags
		includes []string
		excludes []string
	)

	cmd := &cobra.Command{
		Use:   "dir <root>",
		Short: "Scan every matching file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, pattern := range append(includes, excludes...) {
				if !doublestar.ValidatePattern(pattern) {
					return fmt.Errorf("invalid glob %q", pattern)
				}
			}

			paths, err := collectFiles(args[0], includes, excludes)
			if err != nil {
				return err
			}

			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				results := make([]localResult, 0, len(paths))
				for _, p := range paths {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					results = append(results, scanLocal(ctx, rt, p, flags.signatureID))
				}
				return printLocalResults(cmd.OutOrStdout(), results, flags.outputJSON)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&includes, "include", nil, "glob of paths to scan, relative to root (default: all files)")
	cmd.Flags().StringArrayVar(&excludes, "exclude", nil, "glob of paths to skip, relative to root")

	return cmd
}

func newScanIDCmd() *cobra.Command {
	var flags scanFlags

	cmd := &cobra.Command{
		Use:   "id <file-id>",
		Short: "Scan a stored file and persist the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				outcome, err := rt.service.Scan(ctx, args[0], flags.signatureID)
				if outcome == nil {
					return err
				}

				out := cmd.OutOrStdout()
				if flags.outputJSON {
					if jerr := writeJSON(out, outcome); jerr != nil {
						return jerr
					}
				} else {
					renderReport(out, args[0], outcome.Report)
					fmt.Fprintf(out, "persisted: %t  cached: %t\n", outcome.Persisted, outcome.Cached)
				}
				return err
			})
		},
	}
	flags.register(cmd)

	return cmd
}

// withRuntime opens the local runtime for a single command.
func withRuntime(ctx context.Context, fn func(context.Context, *appRuntime) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := openRuntime(ctx, cfg, newLogger(cfg), runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	return fn(ctx, rt)
}

func scanLocal(ctx context.Context, rt *appRuntime, path, signatureID string) localResult {
	res := localResult{Path: path}

	content, err := readFileLimited(path, rt.cfg.HTTP.MaxUploadSize)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	report, err := rt.service.ScanContent(ctx, content, signatureID)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Report = report
	res.Infected = report.Infected()
	return res
}

func readFileLimited(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if limit > 0 && info.Size() > limit {
		return nil, fmt.Errorf("%s: %d bytes exceeds limit of %d", path, info.Size(), limit)
	}
	return os.ReadFile(path)
}

// collectFiles walks root and returns regular files whose slash-separated
// path relative to root matches an include glob and no exclude glob.
func collectFiles(root string, includes, excludes []string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if len(includes) > 0 && !matchAny(includes, rel) {
			return nil
		}
		if matchAny(excludes, rel) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	return paths, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, g := range patterns {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

func printLocalResults(w io.Writer, results []localResult, asJSON bool) error {
	if asJSON {
		return writeJSON(w, results)
	}

	infected, failed := 0, 0
	for _, res := range results {
		switch {
		case res.Error != "":
			failed++
			fmt.Fprintf(w, "%s: error: %s\n", res.Path, res.Error)
		case res.Infected:
			infected++
			renderReport(w, res.Path, res.Report)
		}
	}
	fmt.Fprintf(w, "scanned: %d  infected: %d  errors: %d\n", len(results), infected, failed)
	return nil
}
