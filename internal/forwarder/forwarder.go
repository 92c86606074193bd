// Package forwarder delivers decompressed payload files to the configured
// sinks.
package forwarder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
	"github.com/GabrielNunesIT/s3-log-sync/internal/processor"
	"github.com/GabrielNunesIT/s3-log-sync/internal/sink"
)

// ErrForwardFailed is returned when the primary sink refused a payload.
var ErrForwardFailed = errors.New("forward failed")

// stopTimeout bounds how long Stop waits on each sink.
const stopTimeout = 10 * time.Second

// Forwarder delivers a payload to a primary sink, which alone decides whether
// the object counts as forwarded, then mirrors it to the remaining sinks on a
// best-effort basis.
type Forwarder struct {
	sinks  []sink.Sink
	logger logger.ILogger
}

// New builds a forwarder over the sinks enabled in cfg. The http sink is the
// primary when enabled, otherwise the first enabled sink is. Line-oriented
// sinks share one processor chain built from cfg.Processor.
func New(cfg *config.Config, log logger.ILogger) (*Forwarder, error) {
	chain, err := processor.New(cfg.Processor)
	if err != nil {
		return nil, fmt.Errorf("building processor chain: %w", err)
	}

	var sinks []sink.Sink
	if cfg.Sinks.HTTP.Enabled {
		sinks = append(sinks, sink.NewHTTPSink(cfg.Sinks.HTTP, log))
	}
	if cfg.Sinks.Stdout.Enabled {
		sinks = append(sinks, sink.NewStdoutSink(cfg.Sinks.Stdout, chain, log))
	}
	if cfg.Sinks.File.Enabled {
		sinks = append(sinks, sink.NewFileSink(cfg.Sinks.File, chain, log))
	}
	if cfg.Sinks.Elasticsearch.Enabled {
		sinks = append(sinks, sink.NewElasticsearchSink(cfg.Sinks.Elasticsearch, chain, log))
	}
	if cfg.Sinks.Loki.Enabled {
		sinks = append(sinks, sink.NewLokiSink(cfg.Sinks.Loki, chain, log))
	}
	if cfg.Sinks.VictoriaLogs.Enabled {
		sinks = append(sinks, sink.NewVictoriaLogsSink(cfg.Sinks.VictoriaLogs, chain, log))
	}

	if len(sinks) == 0 {
		return nil, fmt.Errorf("no sinks enabled")
	}

	return NewWithSinks(log, sinks...), nil
}

// NewWithSinks creates a forwarder whose first sink is the primary.
func NewWithSinks(log logger.ILogger, sinks ...sink.Sink) *Forwarder {
	return &Forwarder{
		sinks:  sinks,
		logger: log.SubLogger("Forwarder"),
	}
}

// Sinks returns the names of the configured sinks.
func (f *Forwarder) Sinks() []string {
	names := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Start starts every sink. On failure the sinks already started are stopped.
func (f *Forwarder) Start(ctx context.Context) error {
	for i, s := range f.sinks {
		if err := s.Start(ctx); err != nil {
			f.stop(f.sinks[:i])
			return fmt.Errorf("starting sink %s: %w", s.Name(), err)
		}
		f.logger.Debugf("started sink: %s", s.Name())
	}
	return nil
}

// Stop stops every sink, collecting their errors.
func (f *Forwarder) Stop() error {
	return f.stop(f.sinks)
}

func (f *Forwarder) stop(sinks []sink.Sink) error {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	var errs []error
	for _, s := range sinks {
		if err := s.Stop(ctx); err != nil {
			f.logger.Warningf("sink stop error: name=%s, error=%v", s.Name(), err)
			errs = append(errs, fmt.Errorf("stopping sink %s: %w", s.Name(), err))
		}
	}
	f.logger.Debug("all sinks stopped")
	return errors.Join(errs...)
}

// Forward reads the payload at path and sends it to the primary sink. A
// refusal leaves the file in place and returns an error wrapping
// ErrForwardFailed; the other sinks are not tried. Once the primary accepts,
// the payload is mirrored to the other sinks, whose failures are only logged,
// and the file is deleted.
//
// The primary send is not cut short by cancellation of ctx; the sink's own
// timeout bounds it.
func (f *Forwarder) Forward(ctx context.Context, path string, obj model.Object) error {
	if len(f.sinks) == 0 {
		return fmt.Errorf("%w: no sinks configured", ErrForwardFailed)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading payload %s: %w", ErrForwardFailed, path, err)
	}
	payload := &model.Payload{Key: obj.Key, Path: path, Data: data}

	primary, mirrors := f.sinks[0], f.sinks[1:]
	if err := primary.Send(context.WithoutCancel(ctx), payload); err != nil {
		return fmt.Errorf("%w: %s: sink %s: %w", ErrForwardFailed, obj.Key, primary.Name(), err)
	}

	var g errgroup.Group
	for _, s := range mirrors {
		g.Go(func() error {
			if err := s.Send(ctx, payload); err != nil {
				f.logger.Warningf("mirror sink failed: sink=%s, key=%s, error=%v", s.Name(), obj.Key, err)
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.logger.Warningf("%s was accepted by %s but not mirrored to every sink", obj.Key, primary.Name())
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		f.logger.Warningf("removing forwarded payload: path=%s, error=%v", path, err)
	} else {
		f.logger.Debugf("removed file %s", path)
	}

	f.logger.Infof("forwarded %s to %s (%d bytes)", obj.Key, primary.Name(), len(data))
	return nil
}
