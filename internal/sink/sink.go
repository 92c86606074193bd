// Package sink defines the destinations a decompressed payload is delivered to.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
	"github.com/GabrielNunesIT/s3-log-sync/internal/processor"
)

// ErrRejected is returned when a destination refuses a payload.
var ErrRejected = errors.New("payload rejected")

// Sink delivers whole payloads to one destination.
type Sink interface {
	// Start prepares the sink (connections, writers).
	// Called once before Send is called.
	Start(ctx context.Context) error

	// Send delivers the payload. It returns only once the destination has
	// accepted or refused it.
	Send(ctx context.Context, payload *model.Payload) error

	// Stop releases the sink's resources.
	Stop(ctx context.Context) error

	// Name returns a unique identifier for this sink.
	Name() string
}

// HTTPDoer abstracts HTTP client operations for testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Ensure http.Client implements HTTPDoer.
var _ HTTPDoer = (*http.Client)(nil)

// rejected builds an ErrRejected error for an unexpected HTTP response and
// drains a short excerpt of its body into the message.
func rejected(name string, resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if len(excerpt) == 0 {
		return fmt.Errorf("%s: %w: status=%d", name, ErrRejected, resp.StatusCode)
	}
	return fmt.Errorf("%s: %w: status=%d body=%q", name, ErrRejected, resp.StatusCode, excerpt)
}

// document flattens an entry into the field map shared by the JSON sinks.
// Parsed fields and metadata override the base fields.
func document(entry *model.LogEntry, timeKey, msgKey, sourceKey string) map[string]any {
	doc := map[string]any{
		timeKey:   entry.Timestamp.Format(time.RFC3339Nano),
		msgKey:    string(entry.Raw),
		sourceKey: entry.Source,
	}
	for k, v := range entry.Parsed {
		doc[k] = v
	}
	for k, v := range entry.Metadata {
		doc[k] = v
	}
	return doc
}

// batches splits entries into consecutive slices of at most size entries.
func batches(entries []*model.LogEntry, size int) [][]*model.LogEntry {
	if size <= 0 {
		size = len(entries)
	}
	var out [][]*model.LogEntry
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		out = append(out, entries[start:end])
	}
	return out
}

// orEmpty substitutes a pass-through chain for nil.
func orEmpty(chain *processor.Chain) *processor.Chain {
	if chain == nil {
		return processor.NewChain()
	}
	return chain
}
