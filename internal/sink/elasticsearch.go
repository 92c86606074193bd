package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
	"github.com/GabrielNunesIT/s3-log-sync/internal/processor"
)

// IndexerFactory creates a new BulkIndexer.
type IndexerFactory func(cfg config.ElasticsearchSinkConfig) (esutil.BulkIndexer, error)

// ElasticsearchOption configures the ElasticsearchSink.
type ElasticsearchOption func(*ElasticsearchSink)

// WithIndexerFactory sets a custom factory for creating the BulkIndexer.
// This is primarily used for testing to inject a mock indexer.
func WithIndexerFactory(f IndexerFactory) ElasticsearchOption {
	return func(e *ElasticsearchSink) {
		e.factory = f
	}
}

// ElasticsearchSink indexes payload lines into Elasticsearch. Each payload
// gets its own bulk indexer so its outcome is known before Send returns.
type ElasticsearchSink struct {
	cfg     config.ElasticsearchSinkConfig
	chain   *processor.Chain
	factory IndexerFactory
	client  *elasticsearch.Client
	mu      sync.Mutex
	logger  logger.ILogger
}

// NewElasticsearchSink creates a new Elasticsearch sink.
func NewElasticsearchSink(cfg config.ElasticsearchSinkConfig, chain *processor.Chain, log logger.ILogger, opts ...ElasticsearchOption) *ElasticsearchSink {
	e := &ElasticsearchSink{
		cfg:    cfg,
		chain:  orEmpty(chain),
		logger: log.SubLogger("ElasticsearchSink"),
	}
	e.factory = e.newIndexer

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// newIndexer builds a bulk indexer on a client shared across payloads.
func (e *ElasticsearchSink) newIndexer(cfg config.ElasticsearchSinkConfig) (esutil.BulkIndexer, error) {
	if e.client == nil {
		esCfg := elasticsearch.Config{
			Addresses: cfg.Addresses,
		}
		if cfg.Username != "" {
			esCfg.Username = cfg.Username
			esCfg.Password = cfg.Password
		}

		client, err := elasticsearch.NewClient(esCfg)
		if err != nil {
			return nil, fmt.Errorf("creating elasticsearch client: %w", err)
		}
		e.client = client
	}

	return esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        e.client,
		Index:         cfg.Index,
		NumWorkers:    2,
		FlushBytes:    5e+6, // 5MB
		FlushInterval: cfg.FlushInterval,
	})
}

// Name returns the sink identifier.
func (e *ElasticsearchSink) Name() string {
	return "elasticsearch"
}

// Start logs the target cluster.
func (e *ElasticsearchSink) Start(ctx context.Context) error {
	e.logger.Infof("indexing into elasticsearch: addresses=%v index=%s", e.cfg.Addresses, e.cfg.Index)
	return nil
}

// Stop is a no-op; indexers are closed at the end of each Send.
func (e *ElasticsearchSink) Stop(ctx context.Context) error {
	return nil
}

// Send indexes every line of the payload and waits for the bulk requests to
// complete. Any failed item rejects the whole payload.
func (e *ElasticsearchSink) Send(ctx context.Context, payload *model.Payload) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, _, err := e.chain.Entries(ctx, payload)
	if err != nil {
		return err
	}

	indexer, err := e.factory(e.cfg)
	if err != nil {
		return err
	}

	var failed atomic.Uint64
	var addErr error
	for _, entry := range entries {
		data, err := json.Marshal(document(entry, "@timestamp", "message", "source"))
		if err != nil {
			addErr = fmt.Errorf("encoding entry: %w", err)
			break
		}

		err = indexer.Add(ctx, esutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				failed.Add(1)
				if err != nil {
					e.logger.Debugf("index failure: key=%s error=%v", payload.Key, err)
					return
				}
				e.logger.Debugf("index failure: key=%s type=%s reason=%s", payload.Key, res.Error.Type, res.Error.Reason)
			},
		})
		if err != nil {
			addErr = fmt.Errorf("adding entry: %w", err)
			break
		}
	}

	if err := indexer.Close(ctx); err != nil {
		return fmt.Errorf("closing bulk indexer: %w", err)
	}
	if addErr != nil {
		return addErr
	}

	if n := max(indexer.Stats().NumFailed, failed.Load()); n > 0 {
		return fmt.Errorf("%s: %w: %d of %d documents failed", e.Name(), ErrRejected, n, len(entries))
	}

	e.logger.Debugf("indexed %d documents: key=%s", len(entries), payload.Key)
	return nil
}
