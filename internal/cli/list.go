package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/s3-log-sync/internal/catalog"
	"github.com/GabrielNunesIT/s3-log-sync/internal/objectstore"
	"github.com/GabrielNunesIT/s3-log-sync/internal/progress"
)

// NewListCmd creates the list command.
func NewListCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the objects the next run would process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load(cmd)
			if err != nil {
				return err
			}
			applyStoreOverrides(cmd, cfg)

			if err := cfg.ValidateStore(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ps := progress.New(cfg.Sync.StateDir)
			if err := ps.Load(); err != nil {
				return fmt.Errorf("loading progress: %w", err)
			}

			store, err := objectstore.New(cmd.Context(), cfg.Store, log)
			if err != nil {
				return fmt.Errorf("creating object store: %w", err)
			}

			candidates, err := catalog.NewLister(store, ps, cfg.Sync.StagingDir, log).List(cmd.Context(), cfg.Store.Prefix)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSIZE\tLAST MODIFIED\tSTATE")
			for _, obj := range candidates {
				state := "new"
				if ps.ContainsErrored(obj.Key) {
					state = "retry"
				}
				modified := "-"
				if !obj.LastModified.IsZero() {
					modified = obj.LastModified.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", obj.Key, obj.Size, modified, state)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d objects\n", len(candidates))
			return nil
		},
	}

	addStoreFlags(cmd)
	return cmd
}
