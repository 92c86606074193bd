// Package model defines the data structures shared by the sync pipeline.
package model

import (
	"path"
	"strings"
	"time"
)

// Delimiter separates path segments in object keys.
const Delimiter = "/"

// Object describes a remote object as reported by a listing call.
type Object struct {
	// Key is the full '/'-delimited object key. Folder keys end in '/'.
	Key string

	// Size is the object size in bytes as reported by the store.
	Size int64

	// ETag is the store-provided entity tag, with surrounding quotes removed.
	ETag string

	// LastModified is the modification time reported by the store, if any.
	LastModified time.Time
}

// IsFolder reports whether the key denotes a folder rather than a leaf object.
func (o Object) IsFolder() bool {
	return strings.HasSuffix(o.Key, Delimiter)
}

// BaseName returns the final path segment of the key.
func (o Object) BaseName() string {
	return path.Base(strings.TrimSuffix(o.Key, Delimiter))
}
