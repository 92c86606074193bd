package testutil

import (
	"io"

	"github.com/elastic/go-elasticsearch/v8/esutil"
)

//go:generate mockery --name=WriteCloser --output=mocks --outpkg=mocks
//go:generate mockery --name=BulkIndexer --output=mocks --outpkg=mocks

// WriteCloser wraps io.WriteCloser for mock generation
type WriteCloser interface {
	io.WriteCloser
}

// BulkIndexer wraps esutil.BulkIndexer for mock generation
type BulkIndexer interface {
	esutil.BulkIndexer
}
