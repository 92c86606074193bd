package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/catalog"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/forwarder"
	"github.com/GabrielNunesIT/s3-log-sync/internal/objectstore"
	"github.com/GabrielNunesIT/s3-log-sync/internal/progress"
	"github.com/GabrielNunesIT/s3-log-sync/internal/syncer"
)

// NewRunCmd creates the run command.
func NewRunCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Make one synchronization pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	addStoreFlags(cmd)
	cmd.Flags().String("endpoint", "", "downstream ingestion URL (http sink)")
	cmd.Flags().Bool("verify-checksum", false, "verify downloaded objects against their ETag")
	cmd.Flags().Bool("stdout", false, "also print payload lines to stdout")

	return cmd
}

func applyRunOverrides(cmd *cobra.Command, cfg *config.Config) {
	applyStoreOverrides(cmd, cfg)

	if v, _ := cmd.Flags().GetString("endpoint"); v != "" {
		cfg.Sinks.HTTP.Enabled = true
		cfg.Sinks.HTTP.URL = v
	}
	if v, _ := cmd.Flags().GetBool("verify-checksum"); v {
		cfg.Sync.VerifyChecksum = true
	}
	if v, _ := cmd.Flags().GetBool("stdout"); v {
		cfg.Sinks.Stdout.Enabled = true
	}
}

func runSync(cmd *cobra.Command, opts *globalOptions) error {
	cfg, log, err := opts.load(cmd)
	if err != nil {
		return err
	}
	applyRunOverrides(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(cfg.Sync.StateDir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Sync.StagingDir, 0o755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	lock, err := progress.AcquireLock(cfg.Sync.StateDir, cfg.Sync.StagingDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warningf("releasing run lock: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go handleSignals(ctx, cancel, sigChan, log)

	summary, err := syncOnce(ctx, cfg, log)
	if err != nil {
		return err
	}

	log.Infof("run complete: %s", summary)
	return nil
}

// syncOnce builds the components for cfg and makes one pass.
func syncOnce(ctx context.Context, cfg *config.Config, log logger.ILogger) (*syncer.Summary, error) {
	ps, err := progress.Open(cfg.Sync.StateDir)
	if err != nil {
		return nil, fmt.Errorf("opening progress store: %w", err)
	}
	defer func() {
		if err := ps.Flush(); err != nil {
			log.Errorf("final progress flush: %v", err)
		}
	}()

	store, err := objectstore.New(ctx, cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("creating object store: %w", err)
	}

	fwd, err := forwarder.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("creating forwarder: %w", err)
	}
	if err := fwd.Start(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := fwd.Stop(); err != nil {
			log.Warningf("stopping sinks: %v", err)
		}
	}()

	log.Infof("starting sync: driver=%s bucket=%s prefix=%q sinks=%v",
		store.Name(), cfg.Store.Bucket, cfg.Store.Prefix, fwd.Sinks())

	lister := catalog.NewLister(store, ps, cfg.Sync.StagingDir, log)
	s := syncer.New(cfg.Sync, cfg.Store.Prefix, lister, store, fwd, ps, log)

	summary, err := s.Run(ctx)
	if err != nil {
		return summary, fmt.Errorf("sync: %w", err)
	}
	return summary, nil
}

func handleSignals(ctx context.Context, cancel context.CancelFunc, sigChan <-chan os.Signal, log logger.ILogger) {
	select {
	case sig := <-sigChan:
		log.Infof("received shutdown signal, stopping after the current object: %v", sig)
		cancel()
	case <-ctx.Done():
	}
}
