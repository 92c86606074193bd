// Package processor transforms payload lines before they reach line-oriented
// sinks.
package processor

import (
	"context"
	"fmt"

	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
)

// Processor modifies a LogEntry in place.
type Processor interface {
	// Process transforms a LogEntry in place.
	// Returns an error if the entry should be dropped.
	Process(ctx context.Context, entry *model.LogEntry) error

	// Name returns a unique identifier for this processor.
	Name() string
}

// Chain composes multiple processors into a sequential pipeline.
type Chain struct {
	processors []Processor
}

// NewChain creates a new processor chain.
func NewChain(processors ...Processor) *Chain {
	return &Chain{processors: processors}
}

// New builds the chain described by cfg: parser first, then enricher.
func New(cfg config.ProcessorConfig) (*Chain, error) {
	chain := NewChain()

	if cfg.Parser.Enabled {
		parser, err := NewParser(cfg.Parser)
		if err != nil {
			return nil, fmt.Errorf("creating parser: %w", err)
		}
		chain.Add(parser)
	}

	if cfg.Enricher.Enabled {
		chain.Add(NewEnricher(cfg.Enricher))
	}

	return chain, nil
}

// Process applies all processors in sequence.
func (c *Chain) Process(ctx context.Context, entry *model.LogEntry) error {
	for _, p := range c.processors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Process(ctx, entry); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

// Entries splits a payload into entries and runs each through the chain.
// Entries rejected by a processor are dropped; the number dropped is returned.
func (c *Chain) Entries(ctx context.Context, payload *model.Payload) ([]*model.LogEntry, int, error) {
	raw := payload.Entries()
	out := raw[:0]
	dropped := 0

	for _, entry := range raw {
		if err := ctx.Err(); err != nil {
			return nil, dropped, err
		}
		if err := c.Process(ctx, entry); err != nil {
			dropped++
			continue
		}
		out = append(out, entry)
	}

	return out, dropped, nil
}

// Name returns the chain identifier.
func (c *Chain) Name() string {
	return "chain"
}

// Add appends a processor to the chain.
func (c *Chain) Add(p Processor) {
	c.processors = append(c.processors, p)
}

// Len returns the number of processors in the chain.
func (c *Chain) Len() int {
	return len(c.processors)
}
