// Package syncer runs one synchronization pass: discover candidates, then
// fetch, verify, decompress and forward each object in turn, recording the
// outcome in the progress store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/checksum"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/decompress"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
	"github.com/GabrielNunesIT/s3-log-sync/internal/objectstore"
)

// Lister returns the candidate objects under a prefix.
type Lister interface {
	List(ctx context.Context, prefix string) ([]model.Object, error)
}

// Forwarder delivers a decompressed payload file.
type Forwarder interface {
	Forward(ctx context.Context, path string, obj model.Object) error
}

// Progress records per-object outcomes.
type Progress interface {
	ContainsProcessed(key string) bool
	RecordProcessed(key string) bool
	RecordErrored(key string) bool
	Flush() error
}

// Summary counts the outcomes of a run.
type Summary struct {
	Discovered    int
	Completed     int
	Failed        int
	ForwardFailed int
	Skipped       int
}

// String renders the summary as key=value pairs.
func (s Summary) String() string {
	return fmt.Sprintf("discovered=%d completed=%d failed=%d forward_failed=%d skipped=%d",
		s.Discovered, s.Completed, s.Failed, s.ForwardFailed, s.Skipped)
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithDecompressor replaces the gzip decompressor.
func WithDecompressor(fn func(path string) (string, error)) Option {
	return func(s *Syncer) {
		s.decompress = fn
	}
}

// WithVerifier replaces the checksum verifier used when verification is on.
func WithVerifier(fn func(path, etag string) error) Option {
	return func(s *Syncer) {
		s.verify = fn
	}
}

// Syncer is the per-run orchestrator.
type Syncer struct {
	cfg       config.SyncConfig
	prefix    string
	lister    Lister
	fetcher   objectstore.Fetcher
	forwarder Forwarder
	progress  Progress

	decompress func(path string) (string, error)
	verify     func(path, etag string) error

	logger logger.ILogger
}

// New creates a Syncer for objects under prefix.
func New(cfg config.SyncConfig, prefix string, lister Lister, fetcher objectstore.Fetcher, forwarder Forwarder, progress Progress, log logger.ILogger, opts ...Option) *Syncer {
	s := &Syncer{
		cfg:        cfg,
		prefix:     prefix,
		lister:     lister,
		fetcher:    fetcher,
		forwarder:  forwarder,
		progress:   progress,
		decompress: decompress.File,
		verify:     checksum.Verify,
		logger:     log.SubLogger("Syncer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one pass. A listing failure aborts the run before any object
// is touched; per-object failures are recorded and the pass continues.
// A cancelled context stops the pass between objects and is returned with
// the summary so far.
func (s *Syncer) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	if err := os.MkdirAll(s.cfg.StagingDir, 0o755); err != nil {
		return summary, fmt.Errorf("creating staging directory: %w", err)
	}

	objects, err := s.lister.List(ctx, s.prefix)
	if err != nil {
		return summary, err
	}
	summary.Discovered = len(objects)

	if len(objects) == 0 {
		s.logger.Info("no objects available")
		return summary, nil
	}

	s.logger.Infof("processing %d objects under %q", len(objects), s.prefix)

	for i, obj := range objects {
		if err := ctx.Err(); err != nil {
			s.logger.Warningf("run cancelled after %d of %d objects: %s", i, len(objects), summary)
			return summary, err
		}

		switch s.process(ctx, obj, i+1, len(objects)) {
		case outcomeCompleted:
			summary.Completed++
		case outcomeFailed:
			summary.Failed++
		case outcomeForwardFailed:
			summary.ForwardFailed++
		case outcomeSkipped:
			summary.Skipped++
		}

		if err := s.progress.Flush(); err != nil {
			s.logger.Errorf("persisting progress: %v", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	s.logger.Infof("sync finished: %s", summary)
	return summary, nil
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeFailed
	outcomeForwardFailed
	outcomeSkipped
	outcomeAborted
)

// attempt tracks one object's walk through the stages and the local files it
// has created.
type attempt struct {
	obj    model.Object
	stage  model.Stage
	staged []string
}

func (a *attempt) track(path string) {
	a.staged = append(a.staged, path)
}

func (a *attempt) untrack(path string) {
	kept := a.staged[:0]
	for _, p := range a.staged {
		if p != path {
			kept = append(kept, p)
		}
	}
	a.staged = kept
}

func (s *Syncer) advance(a *attempt, stage model.Stage) {
	a.stage = stage
	s.logger.Debugf("stage: key=%s stage=%s", a.obj.Key, stage)
}

// process moves one object from Discovered to a terminal stage and removes
// the files it staged.
func (s *Syncer) process(ctx context.Context, obj model.Object, idx, total int) outcome {
	a := &attempt{obj: obj, stage: model.StageDiscovered}
	defer s.cleanup(a)

	if s.progress.ContainsProcessed(obj.Key) {
		s.logger.Debugf("already processed: key=%s", obj.Key)
		return outcomeSkipped
	}

	local := filepath.Join(s.cfg.StagingDir, obj.BaseName())
	s.advance(a, model.StageDownloading)
	a.track(local)
	if err := s.fetcher.Fetch(ctx, obj.Key, local); err != nil {
		return s.fail(ctx, a, fmt.Errorf("fetching: %w", err))
	}
	s.advance(a, model.StageDownloaded)
	s.logger.Infof("downloaded %s (%d/%d)", obj.Key, idx, total)

	if s.cfg.VerifyChecksum {
		if err := s.verify(local, obj.ETag); err != nil {
			if !errors.Is(err, checksum.ErrUnverifiable) {
				return s.fail(ctx, a, fmt.Errorf("verifying: %w", err))
			}
			s.logger.Debugf("checksum skipped: key=%s reason=%v", obj.Key, err)
		}
	}

	s.advance(a, model.StageDecompressing)
	payload, err := s.decompress(local)
	if err != nil {
		return s.fail(ctx, a, fmt.Errorf("decompressing: %w", err))
	}
	a.track(payload)
	s.advance(a, model.StageDecompressed)

	s.advance(a, model.StageForwarding)
	if err := s.forwarder.Forward(ctx, payload, obj); err != nil {
		// Left unrecorded so the next run retries it; the payload stays
		// in staging for inspection.
		a.untrack(payload)
		s.logger.Warningf("forward failed, will retry next run: key=%s error=%v", obj.Key, err)
		return outcomeForwardFailed
	}

	s.progress.RecordProcessed(obj.Key)
	s.advance(a, model.StageCompleted)
	s.logger.Infof("completed %s", obj.Key)
	return outcomeCompleted
}

// fail records the object as errored, unless the failure was caused by the
// run being cancelled.
func (s *Syncer) fail(ctx context.Context, a *attempt, err error) outcome {
	if ctx.Err() != nil {
		s.logger.Warningf("interrupted: key=%s stage=%s", a.obj.Key, a.stage)
		return outcomeAborted
	}

	failedAt := a.stage
	s.advance(a, model.StageFailed)
	s.progress.RecordErrored(a.obj.Key)
	s.logger.Warningf("object failed: key=%s stage=%s error=%v", a.obj.Key, failedAt, err)
	return outcomeFailed
}

// cleanup removes exactly the files staged for this attempt.
func (s *Syncer) cleanup(a *attempt) {
	for _, path := range a.staged {
		err := os.Remove(path)
		switch {
		case err == nil:
			s.logger.Debugf("removed file %s", path)
		case errors.Is(err, os.ErrNotExist):
		default:
			s.logger.Warningf("removing staged file: path=%s error=%v", path, err)
		}
	}
}
