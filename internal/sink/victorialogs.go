package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
	"github.com/GabrielNunesIT/s3-log-sync/internal/processor"
)

// VictoriaLogsSink writes payload lines to VictoriaLogs.
type VictoriaLogsSink struct {
	cfg    config.VictoriaLogsSinkConfig
	chain  *processor.Chain
	client HTTPDoer
	logger logger.ILogger
}

// VictoriaLogsOption configures a VictoriaLogsSink.
type VictoriaLogsOption func(*VictoriaLogsSink)

// WithVictoriaLogsHTTPClient sets a custom HTTP client for testing.
func WithVictoriaLogsHTTPClient(client HTTPDoer) VictoriaLogsOption {
	return func(v *VictoriaLogsSink) {
		v.client = client
	}
}

// NewVictoriaLogsSink creates a new VictoriaLogs sink.
func NewVictoriaLogsSink(cfg config.VictoriaLogsSinkConfig, chain *processor.Chain, log logger.ILogger, opts ...VictoriaLogsOption) *VictoriaLogsSink {
	v := &VictoriaLogsSink{
		cfg:   cfg,
		chain: orEmpty(chain),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log.SubLogger("VictoriaLogsSink"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Name returns the sink identifier.
func (v *VictoriaLogsSink) Name() string {
	return "victorialogs"
}

// Start logs the target.
func (v *VictoriaLogsSink) Start(ctx context.Context) error {
	v.logger.Infof("connected to VictoriaLogs: url=%s", v.cfg.URL)
	return nil
}

// Stop is a no-op; every Send pushes synchronously.
func (v *VictoriaLogsSink) Stop(ctx context.Context) error {
	return nil
}

// Send pushes the payload's lines in batches of cfg.BatchSize.
func (v *VictoriaLogsSink) Send(ctx context.Context, payload *model.Payload) error {
	entries, dropped, err := v.chain.Entries(ctx, payload)
	if err != nil {
		return err
	}
	if dropped > 0 {
		v.logger.Debugf("dropped %d lines: key=%s", dropped, payload.Key)
	}

	for _, batch := range batches(entries, v.cfg.BatchSize) {
		if err := v.push(ctx, batch); err != nil {
			return err
		}
	}

	v.logger.Debugf("pushed %d entries to VictoriaLogs: key=%s", len(entries), payload.Key)
	return nil
}

// push sends one batch as JSON lines.
func (v *VictoriaLogsSink) push(ctx context.Context, batch []*model.LogEntry) error {
	var buf bytes.Buffer
	for _, entry := range batch {
		data, err := json.Marshal(document(entry, "_time", "_msg", "_source"))
		if err != nil {
			return fmt.Errorf("encoding entry: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	url := v.cfg.URL + "/insert/jsonline"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", v.Name(), ErrRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return rejected(v.Name(), resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
