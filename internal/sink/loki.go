package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strconv"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
	"github.com/GabrielNunesIT/s3-log-sync/internal/processor"
)

// LokiSink writes payload lines to Grafana Loki.
type LokiSink struct {
	cfg    config.LokiSinkConfig
	chain  *processor.Chain
	client HTTPDoer
	logger logger.ILogger
}

// lokiPushRequest is the Loki push API request format.
type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

// lokiStream represents a log stream in Loki.
type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

// LokiOption configures a LokiSink.
type LokiOption func(*LokiSink)

// WithLokiHTTPClient sets a custom HTTP client for testing.
func WithLokiHTTPClient(client HTTPDoer) LokiOption {
	return func(l *LokiSink) {
		l.client = client
	}
}

// NewLokiSink creates a new Loki sink.
func NewLokiSink(cfg config.LokiSinkConfig, chain *processor.Chain, log logger.ILogger, opts ...LokiOption) *LokiSink {
	l := &LokiSink{
		cfg:   cfg,
		chain: orEmpty(chain),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log.SubLogger("LokiSink"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the sink identifier.
func (l *LokiSink) Name() string {
	return "loki"
}

// Start logs the target.
func (l *LokiSink) Start(ctx context.Context) error {
	l.logger.Infof("connected to Loki: url=%s tenant=%s", l.cfg.URL, l.cfg.TenantID)
	return nil
}

// Stop is a no-op; every Send pushes synchronously.
func (l *LokiSink) Stop(ctx context.Context) error {
	return nil
}

// Send pushes the payload's lines in batches of cfg.BatchSize.
func (l *LokiSink) Send(ctx context.Context, payload *model.Payload) error {
	entries, dropped, err := l.chain.Entries(ctx, payload)
	if err != nil {
		return err
	}
	if dropped > 0 {
		l.logger.Debugf("dropped %d lines: key=%s", dropped, payload.Key)
	}

	for _, batch := range batches(entries, l.cfg.BatchSize) {
		if err := l.push(ctx, l.streams(batch)); err != nil {
			return err
		}
	}

	l.logger.Debugf("pushed %d entries to Loki: key=%s", len(entries), payload.Key)
	return nil
}

// streams groups a batch by label set, keeping first-seen order.
func (l *LokiSink) streams(batch []*model.LogEntry) []lokiStream {
	var out []lokiStream
	for _, entry := range batch {
		labels := make(map[string]string, len(l.cfg.Labels)+len(entry.Metadata)+1)
		maps.Copy(labels, l.cfg.Labels)
		labels["source"] = entry.Source
		maps.Copy(labels, entry.Metadata)

		ts := strconv.FormatInt(entry.Timestamp.UnixNano(), 10)
		line := lokiLine(entry)

		found := false
		for i := range out {
			if maps.Equal(out[i].Stream, labels) {
				out[i].Values = append(out[i].Values, []string{ts, line})
				found = true
				break
			}
		}
		if !found {
			out = append(out, lokiStream{Stream: labels, Values: [][]string{{ts, line}}})
		}
	}
	return out
}

// lokiLine returns the raw line, or a JSON object with the parsed fields when
// the parser extracted any.
func lokiLine(entry *model.LogEntry) string {
	if len(entry.Parsed) == 0 {
		return string(entry.Raw)
	}
	data := map[string]any{"message": string(entry.Raw)}
	maps.Copy(data, entry.Parsed)
	line, err := json.Marshal(data)
	if err != nil {
		return string(entry.Raw)
	}
	return string(line)
}

func (l *LokiSink) push(ctx context.Context, streams []lokiStream) error {
	data, err := json.Marshal(lokiPushRequest{Streams: streams})
	if err != nil {
		return fmt.Errorf("encoding push request: %w", err)
	}

	url := l.cfg.URL + "/loki/api/v1/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.cfg.TenantID != "" {
		req.Header.Set("X-Scope-OrgID", l.cfg.TenantID)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", l.Name(), ErrRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return rejected(l.Name(), resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
