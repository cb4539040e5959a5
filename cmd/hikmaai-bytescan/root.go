// ABOUTME: Root command for hikmaai-bytescan CLI
// ABOUTME: Sets up global flags, config loading, and subcommands

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/config"
)

// Global flags.
var (
	cfgFile   string
	logLevel  string
	logFormat string
	dataDir   string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hikmaai-bytescan",
		Short: "HikmaAI ByteScan - byte signature scanning service",
		Long: `HikmaAI ByteScan matches stored files against a catalog of byte
signatures using a rolling hash. Each signature is an anchor located by
hash and verified byte for byte, followed by a remainder checked by digest.

Runs as a daemon with an HTTP API and optional NATS workers, or directly
from the command line against the local catalog.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: "+config.DefaultConfigPath()+")")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, text)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: "+config.DefaultDataDir()+")")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newSignaturesCmd())
	cmd.AddCommand(newFilesCmd())
	cmd.AddCommand(newDBCmd())

	return cmd
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg)
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hikmaai-bytescan version %s\n", version)
			fmt.Fprintf(out, "  Git SHA:    %s\n", gitSHA)
			fmt.Fprintf(out, "  Build Time: %s\n", buildTime)
		},
	}
}
