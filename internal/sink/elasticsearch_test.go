package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/processor"
	"github.com/GabrielNunesIT/s3-log-sync/internal/testutil"
	"github.com/GabrielNunesIT/s3-log-sync/internal/testutil/mocks"
)

func esConfig() config.ElasticsearchSinkConfig {
	return config.ElasticsearchSinkConfig{
		Enabled:   true,
		Addresses: []string{"http://localhost:9200"},
		Index:     "tracking-logs",
	}
}

func factoryFor(indexer esutil.BulkIndexer) IndexerFactory {
	return func(c config.ElasticsearchSinkConfig) (esutil.BulkIndexer, error) {
		return indexer, nil
	}
}

func TestElasticsearchSink_Name(t *testing.T) {
	assert.Equal(t, "elasticsearch", NewElasticsearchSink(esConfig(), nil, testutil.NewTestLogger()).Name())
}

func TestElasticsearchSink_Send(t *testing.T) {
	chain := processor.NewChain(processor.WithHostname(config.EnricherConfig{Enabled: true, AddHostname: true}, "test-host"))
	payload := testPayload(`first`, `second`)

	mockIndexer := mocks.NewBulkIndexer(t)
	var docs []map[string]any
	mockIndexer.On("Add", mock.Anything, mock.MatchedBy(func(item esutil.BulkIndexerItem) bool {
		return item.Action == "index"
	})).Return(nil).Run(func(args mock.Arguments) {
		item := args.Get(1).(esutil.BulkIndexerItem)
		bodyBytes, _ := io.ReadAll(item.Body)
		var doc map[string]any
		_ = json.Unmarshal(bodyBytes, &doc)
		docs = append(docs, doc)
	}).Times(2)
	mockIndexer.On("Close", mock.Anything).Return(nil).Once()
	mockIndexer.On("Stats").Return(esutil.BulkIndexerStats{NumAdded: 2, NumIndexed: 2}).Once()

	s := NewElasticsearchSink(esConfig(), chain, testutil.NewTestLogger(), WithIndexerFactory(factoryFor(mockIndexer)))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Send(context.Background(), payload))

	require.Len(t, docs, 2)
	assert.Equal(t, "first", docs[0]["message"])
	assert.Equal(t, payload.Key, docs[0]["source"])
	assert.Equal(t, "test-host", docs[0]["hostname"])
	assert.Contains(t, docs[0], "@timestamp")
}

func TestElasticsearchSink_FailedItems(t *testing.T) {
	mockIndexer := mocks.NewBulkIndexer(t)
	mockIndexer.On("Add", mock.Anything, mock.Anything).Return(nil)
	mockIndexer.On("Close", mock.Anything).Return(nil)
	mockIndexer.On("Stats").Return(esutil.BulkIndexerStats{NumAdded: 3, NumFailed: 1})

	s := NewElasticsearchSink(esConfig(), nil, testutil.NewTestLogger(), WithIndexerFactory(factoryFor(mockIndexer)))

	err := s.Send(context.Background(), testPayload("a", "b", "c"))
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "1 of 3 documents failed")
}

func TestElasticsearchSink_OnFailureCallback(t *testing.T) {
	mockIndexer := mocks.NewBulkIndexer(t)
	mockIndexer.On("Add", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		item := args.Get(1).(esutil.BulkIndexerItem)
		item.OnFailure(context.Background(), item, esutil.BulkIndexerResponseItem{}, errors.New("mapping conflict"))
	})
	mockIndexer.On("Close", mock.Anything).Return(nil)
	mockIndexer.On("Stats").Return(esutil.BulkIndexerStats{})

	s := NewElasticsearchSink(esConfig(), nil, testutil.NewTestLogger(), WithIndexerFactory(factoryFor(mockIndexer)))

	err := s.Send(context.Background(), testPayload("a", "b"))
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "2 of 2 documents failed")
}

func TestElasticsearchSink_AddError(t *testing.T) {
	mockIndexer := mocks.NewBulkIndexer(t)
	mockIndexer.On("Add", mock.Anything, mock.Anything).Return(errors.New("indexer closed")).Once()
	mockIndexer.On("Close", mock.Anything).Return(nil).Once()

	s := NewElasticsearchSink(esConfig(), nil, testutil.NewTestLogger(), WithIndexerFactory(factoryFor(mockIndexer)))

	err := s.Send(context.Background(), testPayload("a", "b"))
	assert.ErrorContains(t, err, "indexer closed")
}

func TestElasticsearchSink_CloseError(t *testing.T) {
	mockIndexer := mocks.NewBulkIndexer(t)
	mockIndexer.On("Add", mock.Anything, mock.Anything).Return(nil)
	mockIndexer.On("Close", mock.Anything).Return(errors.New("flush timeout"))

	s := NewElasticsearchSink(esConfig(), nil, testutil.NewTestLogger(), WithIndexerFactory(factoryFor(mockIndexer)))

	err := s.Send(context.Background(), testPayload("a"))
	assert.ErrorContains(t, err, "flush timeout")
}

func TestElasticsearchSink_FactoryError(t *testing.T) {
	factory := func(c config.ElasticsearchSinkConfig) (esutil.BulkIndexer, error) {
		return nil, errors.New("factory failure")
	}
	s := NewElasticsearchSink(esConfig(), nil, testutil.NewTestLogger(), WithIndexerFactory(factory))

	err := s.Send(context.Background(), testPayload("a"))
	assert.ErrorContains(t, err, "factory failure")
}
