// Package cli wires configuration, logging and the sync components into the
// s3-log-sync command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	cfgFile  string
	logLevel string
	verbose  bool
}

// Execute builds and runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "s3-log-sync",
		Short: "Ship compressed logs from an S3 bucket to an ingestion endpoint",
		Long: `s3-log-sync makes one pass over a bucket prefix: it lists the
compressed log objects not yet handled, downloads and decompresses each one,
forwards the payload to the configured sinks and records the outcome.

Progress is kept in two append-only files (processed.txt, errored.txt) in the
state directory, so repeated runs pick up where the previous one stopped and
retry objects that failed.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output (debug level)")

	rootCmd.AddCommand(
		NewRunCmd(opts),
		NewListCmd(opts),
		NewStatusCmd(opts),
		NewValidateCmd(opts),
		NewVersionCmd(),
	)

	return rootCmd
}

// load reads the configuration and builds the logger from it, letting the
// persistent flags override the configured level.
func (o *globalOptions) load(cmd *cobra.Command) (*config.Config, logger.ILogger, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.verbose {
		cfg.Verbose = true
	}

	log := SetupLogging(cmd.ErrOrStderr(), cfg.LogLevel, cfg.Verbose)
	return cfg, log, nil
}

// addStoreFlags registers the flags that select the bucket and local
// directories.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("bucket", "", "bucket to read from")
	cmd.Flags().String("prefix", "", "key prefix to walk")
	cmd.Flags().String("endpoint-url", "", "S3-compatible endpoint URL")
	cmd.Flags().String("staging-dir", "", "directory for downloaded files")
	cmd.Flags().String("state-dir", "", "directory for progress files")
}

// applyStoreOverrides copies set flags onto cfg.
func applyStoreOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("bucket"); v != "" {
		cfg.Store.Bucket = v
	}
	if cmd.Flags().Changed("prefix") {
		cfg.Store.Prefix, _ = cmd.Flags().GetString("prefix")
	}
	if v, _ := cmd.Flags().GetString("endpoint-url"); v != "" {
		cfg.Store.Endpoint = v
	}
	if v, _ := cmd.Flags().GetString("staging-dir"); v != "" {
		cfg.Sync.StagingDir = v
	}
	if v, _ := cmd.Flags().GetString("state-dir"); v != "" {
		cfg.Sync.StateDir = v
	}
}
