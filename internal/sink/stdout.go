package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
	"github.com/GabrielNunesIT/s3-log-sync/internal/processor"
)

// StdoutSink prints payload lines to standard output.
type StdoutSink struct {
	cfg    config.StdoutSinkConfig
	chain  *processor.Chain
	writer io.Writer
	mu     sync.Mutex
	logger logger.ILogger
}

// NewStdoutSink creates a new stdout sink.
func NewStdoutSink(cfg config.StdoutSinkConfig, chain *processor.Chain, log logger.ILogger) *StdoutSink {
	return NewStdoutSinkWithWriter(cfg, chain, os.Stdout, log)
}

// NewStdoutSinkWithWriter creates a stdout sink with a custom writer (for testing).
func NewStdoutSinkWithWriter(cfg config.StdoutSinkConfig, chain *processor.Chain, w io.Writer, log logger.ILogger) *StdoutSink {
	return &StdoutSink{
		cfg:    cfg,
		chain:  orEmpty(chain),
		writer: w,
		logger: log.SubLogger("StdoutSink"),
	}
}

// Name returns the sink identifier.
func (s *StdoutSink) Name() string {
	return "stdout"
}

// Start is a no-op.
func (s *StdoutSink) Start(ctx context.Context) error {
	s.logger.Debugf("stdout sink started: format=%s", s.cfg.Format)
	return nil
}

// Stop is a no-op.
func (s *StdoutSink) Stop(ctx context.Context) error {
	return nil
}

// Send writes every payload line in the configured format.
func (s *StdoutSink) Send(ctx context.Context, payload *model.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, _, err := s.chain.Entries(ctx, payload)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		var output []byte
		switch s.cfg.Format {
		case "text":
			output = formatText(entry)
		default:
			output, err = json.Marshal(document(entry, "timestamp", "message", "source"))
			if err != nil {
				return fmt.Errorf("encoding entry: %w", err)
			}
		}

		if _, err := s.writer.Write(append(output, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// formatText formats the entry as plain text.
func formatText(entry *model.LogEntry) []byte {
	ts := entry.Timestamp.Format(time.RFC3339)
	return fmt.Appendf(nil, "[%s] [%s] %s", ts, entry.Source, entry.Raw)
}
