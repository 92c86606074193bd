package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
)

// ObjectKeyHeader carries the originating object key on HTTP deliveries.
const ObjectKeyHeader = "X-Object-Key"

// HTTPSink posts each payload, unmodified, to the ingestion endpoint.
type HTTPSink struct {
	cfg    config.HTTPSinkConfig
	client HTTPDoer
	logger logger.ILogger
}

// HTTPOption configures an HTTPSink.
type HTTPOption func(*HTTPSink)

// WithHTTPClient sets a custom HTTP client for testing.
func WithHTTPClient(client HTTPDoer) HTTPOption {
	return func(h *HTTPSink) {
		h.client = client
	}
}

// NewHTTPSink creates a new HTTP sink.
func NewHTTPSink(cfg config.HTTPSinkConfig, log logger.ILogger, opts ...HTTPOption) *HTTPSink {
	h := &HTTPSink{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log.SubLogger("HTTPSink"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name returns the sink identifier.
func (h *HTTPSink) Name() string {
	return "http"
}

// Start logs the target endpoint.
func (h *HTTPSink) Start(ctx context.Context) error {
	h.logger.Debugf("forwarding to endpoint: url=%s", h.cfg.URL)
	return nil
}

// Stop is a no-op.
func (h *HTTPSink) Stop(ctx context.Context) error {
	return nil
}

// Send posts the payload body. Only a 200 response counts as accepted.
func (h *HTTPSink) Send(ctx context.Context, payload *model.Payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(payload.Data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if h.cfg.ContentType != "" {
		req.Header.Set("Content-Type", h.cfg.ContentType)
	}
	req.Header.Set(ObjectKeyHeader, payload.Key)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", h.Name(), ErrRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rejected(h.Name(), resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	h.logger.Debugf("payload accepted: key=%s bytes=%d", payload.Key, len(payload.Data))
	return nil
}
