package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/natefinch/lumberjack"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
	"github.com/GabrielNunesIT/s3-log-sync/internal/processor"
)

// WriterFactory creates a new WriteCloser.
type WriterFactory func(cfg config.FileSinkConfig) (io.WriteCloser, error)

// FileOption configures the FileSink.
type FileOption func(*FileSink)

// WithWriterFactory sets a custom factory for creating the writer.
func WithWriterFactory(f WriterFactory) FileOption {
	return func(s *FileSink) {
		s.factory = f
	}
}

// FileSink archives payload lines as JSON into rotating files.
type FileSink struct {
	cfg     config.FileSinkConfig
	chain   *processor.Chain
	factory WriterFactory
	writer  io.WriteCloser
	mu      sync.Mutex
	logger  logger.ILogger
}

// NewFileSink creates a new file sink.
func NewFileSink(cfg config.FileSinkConfig, chain *processor.Chain, log logger.ILogger, opts ...FileOption) *FileSink {
	s := &FileSink{
		cfg:    cfg,
		chain:  orEmpty(chain),
		logger: log.SubLogger("FileSink"),
	}

	// Default factory creates lumberjack logger
	s.factory = func(cfg config.FileSinkConfig) (io.WriteCloser, error) {
		return &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}, nil
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the sink identifier.
func (s *FileSink) Name() string {
	return "file"
}

// Start opens the rotating file writer.
func (s *FileSink) Start(ctx context.Context) error {
	w, err := s.factory(s.cfg)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", s.cfg.Path, err)
	}
	s.mu.Lock()
	s.writer = w
	s.mu.Unlock()
	s.logger.Debugf("archiving to %s", s.cfg.Path)
	return nil
}

// Stop closes the file writer.
func (s *FileSink) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	return err
}

// Send appends one JSON line per payload line.
func (s *FileSink) Send(ctx context.Context, payload *model.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return fmt.Errorf("%s: sink not started", s.Name())
	}

	entries, _, err := s.chain.Entries(ctx, payload)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		output, err := json.Marshal(document(entry, "timestamp", "message", "source"))
		if err != nil {
			return fmt.Errorf("encoding entry: %w", err)
		}
		if _, err := s.writer.Write(append(output, '\n')); err != nil {
			return fmt.Errorf("writing archive: %w", err)
		}
	}

	s.logger.Debugf("archived %d lines: key=%s", len(entries), payload.Key)
	return nil
}
