// ABOUTME: Database maintenance commands: statistics, value log compaction, cache reset
// ABOUTME: Run while the daemon is stopped; Badger allows one process per data directory

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect and maintain the local database",
	}

	cmd.AddCommand(newDBStatsCmd())
	cmd.AddCommand(newDBCompactCmd())
	cmd.AddCommand(newDBClearCacheCmd())

	return cmd
}

func newDBStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counts and report cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				stats, err := rt.store.Stats()
				if err != nil {
					return err
				}

				table := newTable(cmd.OutOrStdout(), "METRIC", "VALUE")
				table.Append([]string{"data dir", rt.cfg.DataDir})
				table.Append([]string{"signatures", strconv.FormatInt(stats.SignatureCount, 10)})
				table.Append([]string{"files", strconv.FormatInt(stats.FileCount, 10)})
				table.Append([]string{"size", humanize.Bytes(uint64(stats.SizeBytes))})

				if rt.cache != nil {
					cs, err := rt.cache.Stats(ctx)
					if err != nil {
						return err
					}
					table.Append([]string{"cached reports", strconv.FormatInt(cs.Entries, 10)})
					table.Append([]string{"cache ttl", rt.cache.TTL().String()})
					table.Append([]string{"bloom items", strconv.FormatUint(uint64(cs.Bloom.ApproxItems), 10)})
				}
				table.Render()
				return nil
			})
		},
	}
}

func newDBCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Reclaim space from the value log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				if err := rt.store.Compact(); err != nil {
					return fmt.Errorf("compacting: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "compaction complete")
				return nil
			})
		},
	}
}

func newDBClearCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Drop every cached scan report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *appRuntime) error {
				if rt.cache == nil {
					return errors.New("report cache is disabled")
				}
				if err := rt.cache.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "report cache cleared")
				return nil
			})
		},
	}
}
