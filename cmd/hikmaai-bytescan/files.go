// ABOUTME: Stored file commands: add local files, import from GCS, list, show, delete
// ABOUTME: Stored files can then be scanned with "scan id"

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/gcs"
)

func newFilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage stored files",
	}

	cmd.AddCommand(newFilesAddCmd())
	cmd.AddCommand(newFilesImportGCSCmd())
	cmd.AddCommand(newFilesListCmd())
	cmd.AddCommand(newFilesShowCmd())
	cmd.AddCommand(newFilesDeleteCmd())

	return cmd
}

func newFilesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>...",
		Short: "Store local files for scanning",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				for _, p := range args {
					content, err := readFileLimited(p, rt.cfg.HTTP.MaxUploadSize)
					if err != nil {
						return err
					}
					file, err := rt.service.AddFile(ctx, filepath.Base(p), content)
					if err != nil {
						return fmt.Errorf("storing %s: %w", p, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", file.ID, p)
				}
				return nil
			})
		},
	}
}

func newFilesImportGCSCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-gcs <gs://bucket/object>...",
		Short: "Store objects downloaded from Google Cloud Storage",
		Long: `Download objects from the configured gcs.bucket and store them for
scanning. Objects outside gcs.allowed_prefix are refused.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				if rt.gcs == nil {
					return errors.New("gcs.bucket is not configured")
				}
				for _, uri := range args {
					obj, err := rt.gcs.FetchObject(ctx, uri)
					if err != nil {
						return err
					}
					file, err := rt.service.AddFile(ctx, gcs.ObjectName(uri), obj.Data)
					if err != nil {
						return fmt.Errorf("storing %s: %w", uri, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", file.ID, uri)
				}
				return nil
			})
		},
	}
}

func newFilesListCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				files, err := rt.service.ListFiles(ctx)
				if err != nil {
					return err
				}
				if outputJSON {
					return writeJSON(cmd.OutOrStdout(), files)
				}
				renderFiles(cmd.OutOrStdout(), files)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&outputJSON, "json", "j", false, "output as JSON")

	return cmd
}

func newFilesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file-id>",
		Short: "Show a stored file and its last scan result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				file, err := rt.service.GetFile(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), file)
			})
		},
	}
}

func newFilesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file-id>",
		Short: "Delete a stored file and its content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				if err := rt.service.DeleteFile(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}
