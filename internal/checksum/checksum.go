// Package checksum computes content digests of staged files.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const blockSize = 4096

var (
	// ErrMismatch is returned when a file digest differs from the expected ETag.
	ErrMismatch = errors.New("checksum mismatch")

	// ErrUnverifiable is returned for ETags that are not a plain MD5 digest,
	// such as those of multipart uploads.
	ErrUnverifiable = errors.New("etag is not an md5 digest")
)

// File returns the hex MD5 digest of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return Reader(f)
}

// Reader returns the hex MD5 digest of everything read from r.
func Reader(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.CopyBuffer(h, r, make([]byte, blockSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks the file at path against an object ETag.
func Verify(path, etag string) error {
	etag = strings.ToLower(strings.Trim(etag, `"`))
	if len(etag) != hex.EncodedLen(md5.Size) || strings.Contains(etag, "-") {
		return fmt.Errorf("%w: %q", ErrUnverifiable, etag)
	}

	sum, err := File(path)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", path, err)
	}
	if sum != etag {
		return fmt.Errorf("%w: local=%s remote=%s", ErrMismatch, sum, etag)
	}
	return nil
}
