// Package catalog walks the remote store and selects the objects a run should
// process.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/GabrielNunesIT/s3-log-sync/internal/decompress"
	"github.com/GabrielNunesIT/s3-log-sync/internal/model"
	"github.com/GabrielNunesIT/s3-log-sync/internal/objectstore"
)

// ProcessedSet reports whether a key has already been handled.
type ProcessedSet interface {
	ContainsProcessed(key string) bool
}

// Lister produces the candidate objects under a prefix.
type Lister struct {
	store      objectstore.Lister
	progress   ProcessedSet
	stagingDir string
	logger     logger.ILogger
}

// NewLister creates a catalog lister.
func NewLister(store objectstore.Lister, progress ProcessedSet, stagingDir string, log logger.ILogger) *Lister {
	return &Lister{
		store:      store,
		progress:   progress,
		stagingDir: stagingDir,
		logger:     log.SubLogger("Catalog"),
	}
}

// List walks prefix and every folder beneath it, returning the objects that
// are not folder markers, not already staged locally and not processed.
// Results keep discovery order. Any listing failure aborts the walk.
func (l *Lister) List(ctx context.Context, prefix string) ([]model.Object, error) {
	var candidates []model.Object

	pending := []string{prefix}
	visited := map[string]struct{}{prefix: {}}
	seen := make(map[string]struct{})

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := pending[0]
		pending = pending[1:]

		objects, err := l.store.List(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("listing objects under %q: %w", current, err)
		}

		for _, obj := range objects {
			if obj.IsFolder() {
				if _, ok := visited[obj.Key]; ok {
					continue
				}
				visited[obj.Key] = struct{}{}
				pending = append(pending, obj.Key)
				continue
			}

			if _, ok := seen[obj.Key]; ok {
				continue
			}
			seen[obj.Key] = struct{}{}

			if l.staged(obj) {
				l.logger.Debugf("already downloaded: key=%s", obj.Key)
				continue
			}
			if l.progress.ContainsProcessed(obj.Key) {
				l.logger.Debugf("already processed: key=%s", obj.Key)
				continue
			}

			candidates = append(candidates, obj)
		}
	}

	l.logger.Infof("found %d candidate objects under %q (%d folders walked)", len(candidates), prefix, len(visited))
	return candidates, nil
}

// gzipMagic opens every gzip member.
var gzipMagic = []byte{0x1f, 0x8b}

// staged reports whether a compressed copy of the object already sits in the
// staging directory under its basename. Decompressed payloads left behind by
// a refused delivery do not count, even when another object shares their
// name.
func (l *Lister) staged(obj model.Object) bool {
	if l.stagingDir == "" || !strings.HasSuffix(obj.BaseName(), decompress.Suffix) {
		return false
	}

	f, err := os.Open(filepath.Join(l.stagingDir, obj.BaseName()))
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, len(gzipMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, gzipMagic)
}
