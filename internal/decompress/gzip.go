// Package decompress expands staged objects next to their compressed source.
package decompress

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Suffix is the file extension stripped from decompressed siblings.
const Suffix = ".gz"

// ErrUnsupportedFormat is returned for files without the gzip suffix.
var ErrUnsupportedFormat = errors.New("unsupported compression format")

// Target returns the sibling path File writes to for a compressed path.
func Target(path string) (string, error) {
	if !strings.HasSuffix(path, Suffix) || len(path) == len(Suffix) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return strings.TrimSuffix(path, Suffix), nil
}

// File decompresses the gzip file at path into a sibling with the suffix
// stripped and returns the sibling path. A partially written sibling is
// removed on failure.
func File(path string) (_ string, err error) {
	target, err := Target(path)
	if err != nil {
		return "", err
	}

	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("reading gzip header of %s: %w", path, err)
	}
	defer zr.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			os.Remove(target)
		}
	}()

	if _, err := io.Copy(out, zr); err != nil {
		return "", fmt.Errorf("decompressing %s: %w", path, err)
	}

	return target, nil
}
