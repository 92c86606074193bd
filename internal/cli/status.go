package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/s3-log-sync/internal/progress"
)

// NewStatusCmd creates the status command.
func NewStatusCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the recorded progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("state-dir"); v != "" {
				cfg.Sync.StateDir = v
			}

			ps := progress.New(cfg.Sync.StateDir)
			if err := ps.Load(); err != nil {
				return fmt.Errorf("loading progress: %w", err)
			}

			processed := ps.Processed()
			errored := ps.Errored()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "State directory: %s\n", ps.Dir())
			fmt.Fprintf(out, "  Processed: %d\n", len(processed))
			fmt.Fprintf(out, "  Errored:   %d\n", len(errored))

			if len(errored) > 0 {
				fmt.Fprintln(out, "Errored objects (retried on the next run):")
				for _, key := range errored {
					fmt.Fprintf(out, "  %s\n", key)
				}
			}

			if all, _ := cmd.Flags().GetBool("processed"); all && len(processed) > 0 {
				fmt.Fprintln(out, "Processed objects:")
				for _, key := range processed {
					fmt.Fprintf(out, "  %s\n", key)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("state-dir", "", "directory for progress files")
	cmd.Flags().Bool("processed", false, "also list processed keys")
	return cmd
}
