package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/forwarder"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			// Building the forwarder also compiles the processor patterns.
			fwd, err := forwarder.New(cfg, logger.NewConsoleLogger(io.Discard))
			if err != nil {
				return fmt.Errorf("sink configuration error: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration valid:\n")
			fmt.Fprintf(out, "  Store:   %s bucket=%s prefix=%q\n", cfg.Store.Driver, cfg.Store.Bucket, cfg.Store.Prefix)
			fmt.Fprintf(out, "  Staging: %s\n", cfg.Sync.StagingDir)
			fmt.Fprintf(out, "  State:   %s\n", cfg.Sync.StateDir)
			fmt.Fprintf(out, "  Sinks:   %s\n", strings.Join(fwd.Sinks(), ", "))
			return nil
		},
	}
}
