package processor

import (
	"context"
	"os"

	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
)

// Metadata keys set by the Enricher.
const (
	HostnameKey  = "hostname"
	ObjectKeyKey = "object_key"
)

// Enricher adds metadata labels to log entries.
type Enricher struct {
	cfg      config.EnricherConfig
	hostname string
}

// NewEnricher creates a new enrichment processor.
func NewEnricher(cfg config.EnricherConfig) *Enricher {
	e := &Enricher{cfg: cfg}
	if cfg.AddHostname {
		e.hostname, _ = os.Hostname()
	}
	return e
}

// WithHostname creates an Enricher that reports hostname instead of the
// detected one.
func WithHostname(cfg config.EnricherConfig, hostname string) *Enricher {
	e := NewEnricher(cfg)
	e.hostname = hostname
	return e
}

// Name returns the processor identifier.
func (e *Enricher) Name() string {
	return "enricher"
}

// Process adds the hostname, the originating object key and any static labels.
// Static labels are applied last and win over the computed ones.
func (e *Enricher) Process(ctx context.Context, entry *model.LogEntry) error {
	if !e.cfg.Enabled {
		return nil
	}

	if e.cfg.AddHostname && e.hostname != "" {
		entry.Metadata[HostnameKey] = e.hostname
	}
	if e.cfg.AddObjectKey && entry.Source != "" {
		entry.Metadata[ObjectKeyKey] = entry.Source
	}
	for k, v := range e.cfg.StaticLabels {
		entry.Metadata[k] = v
	}

	return nil
}
