package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/s3-log-sync/internal/config"
	"github.com/GabrielNunesIT/s3-log-sync/internal/processor"
	"github.com/GabrielNunesIT/s3-log-sync/internal/testutil"
)

func TestVictoriaLogsSink_Name(t *testing.T) {
	s := NewVictoriaLogsSink(config.VictoriaLogsSinkConfig{}, nil, testutil.NewTestLogger())
	assert.Equal(t, "victorialogs", s.Name())
}

func TestVictoriaLogsSink_SendBatches(t *testing.T) {
	var requests []*http.Request
	var bodies []string

	cfg := config.VictoriaLogsSinkConfig{URL: "http://localhost:9428", BatchSize: 2}
	chain, err := processor.New(config.ProcessorConfig{
		Parser: config.ParserConfig{Enabled: true, JSONAutoDetect: true},
	})
	require.NoError(t, err)

	s := NewVictoriaLogsSink(cfg, chain, testutil.NewTestLogger(),
		WithVictoriaLogsHTTPClient(respond(http.StatusNoContent, &requests, &bodies)))

	payload := testPayload(`{"event_type":"a"}`, `{"event_type":"b"}`, `plain`)
	require.NoError(t, s.Send(context.Background(), payload))

	require.Len(t, requests, 2)
	assert.Equal(t, "/insert/jsonline", requests[0].URL.Path)
	assert.Equal(t, "application/x-ndjson", requests[0].Header.Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(bodies[0]), "\n")
	require.Len(t, lines, 2)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &doc))
	assert.Equal(t, `{"event_type":"a"}`, doc["_msg"])
	assert.Equal(t, payload.Key, doc["_source"])
	assert.Equal(t, "a", doc["event_type"])

	assert.Equal(t, 1, len(strings.Split(strings.TrimSpace(bodies[1]), "\n")))
}

func TestVictoriaLogsSink_Rejected(t *testing.T) {
	var requests []*http.Request
	cfg := config.VictoriaLogsSinkConfig{URL: "http://localhost:9428", BatchSize: 1}
	s := NewVictoriaLogsSink(cfg, nil, testutil.NewTestLogger(),
		WithVictoriaLogsHTTPClient(respond(http.StatusInternalServerError, &requests, nil)))

	err := s.Send(context.Background(), testPayload("a", "b"))
	assert.ErrorIs(t, err, ErrRejected)
	assert.Len(t, requests, 1, "no further batches after a rejection")
}

func TestVictoriaLogsSink_EmptyPayload(t *testing.T) {
	var requests []*http.Request
	s := NewVictoriaLogsSink(config.VictoriaLogsSinkConfig{URL: "http://x", BatchSize: 10}, nil, testutil.NewTestLogger(),
		WithVictoriaLogsHTTPClient(respond(http.StatusOK, &requests, nil)))

	require.NoError(t, s.Send(context.Background(), testPayload("")))
	assert.Empty(t, requests)
}
