// Package progress persists which remote objects have been processed or have
// failed, so repeated runs make forward progress.
//
// Each set is backed by a newline-delimited, append-only file. Files are read
// once at startup; Flush appends only keys that were not yet written. Keys are
// stored verbatim, except those that cannot sit on a single line, which are
// written Go-quoted.
package progress

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Backing file names inside the state directory.
const (
	ProcessedFile = "processed.txt"
	ErroredFile   = "errored.txt"
)

// keySet is one durable set: every member has either been loaded from or
// queued for its backing file.
type keySet struct {
	path    string
	members map[string]struct{}
	pending []string
}

func newKeySet(path string) *keySet {
	return &keySet{path: path, members: make(map[string]struct{})}
}

func (s *keySet) load() error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		s.members[decodeKey(line)] = struct{}{}
	}
	return scanner.Err()
}

// encodeKey renders key as exactly one line that decodeKey maps back to it.
func encodeKey(key string) string {
	if key == "" || strings.ContainsAny(key, "\r\n") || strings.HasPrefix(key, `"`) {
		return strconv.Quote(key)
	}
	return key
}

func decodeKey(line string) string {
	if strings.HasPrefix(line, `"`) {
		if key, err := strconv.Unquote(line); err == nil {
			return key
		}
	}
	return line
}

func (s *keySet) has(key string) bool {
	_, ok := s.members[key]
	return ok
}

func (s *keySet) add(key string) bool {
	if s.has(key) {
		return false
	}
	s.members[key] = struct{}{}
	s.pending = append(s.pending, key)
	return true
}

func (s *keySet) flush() error {
	if len(s.pending) == 0 {
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for _, key := range s.pending {
		w.WriteString(encodeKey(key))
		w.WriteByte('\n')
	}

	err = errors.Join(w.Flush(), f.Sync())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	s.pending = s.pending[:0]
	return nil
}

func (s *keySet) sorted(exclude *keySet) []string {
	keys := make([]string, 0, len(s.members))
	for k := range s.members {
		if exclude != nil && exclude.has(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Store records processed and errored object keys.
type Store struct {
	dir       string
	mu        sync.Mutex
	processed *keySet
	errored   *keySet
}

// New returns a store rooted at dir without reading it. Call Load before use.
func New(dir string) *Store {
	return &Store{
		dir:       dir,
		processed: newKeySet(filepath.Join(dir, ProcessedFile)),
		errored:   newKeySet(filepath.Join(dir, ErroredFile)),
	}
}

// Open creates the state directory if needed and loads both sets.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}
	s := New(dir)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads both backing files. Missing files are treated as empty sets.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.processed.load(); err != nil {
		return fmt.Errorf("loading %s: %w", s.processed.path, err)
	}
	if err := s.errored.load(); err != nil {
		return fmt.Errorf("loading %s: %w", s.errored.path, err)
	}
	return nil
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// ContainsProcessed reports whether key completed successfully.
func (s *Store) ContainsProcessed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed.has(key)
}

// ContainsErrored reports whether key failed and has not since been processed.
func (s *Store) ContainsErrored(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errored.has(key) && !s.processed.has(key)
}

// RecordProcessed marks key as processed. It reports whether the key was new.
func (s *Store) RecordProcessed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed.add(key)
}

// RecordErrored marks key as errored. It reports whether the key was new.
func (s *Store) RecordErrored(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errored.add(key)
}

// Flush appends keys recorded since the last successful flush. On failure the
// unwritten keys stay queued and the in-memory sets are left untouched.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if err := s.processed.flush(); err != nil {
		errs = append(errs, fmt.Errorf("appending to %s: %w", s.processed.path, err))
	}
	if err := s.errored.flush(); err != nil {
		errs = append(errs, fmt.Errorf("appending to %s: %w", s.errored.path, err))
	}
	return errors.Join(errs...)
}

// Pending returns how many keys are waiting to be flushed.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed.pending) + len(s.errored.pending)
}

// Processed returns a sorted snapshot of processed keys.
func (s *Store) Processed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed.sorted(nil)
}

// Errored returns a sorted snapshot of keys that failed and were not
// processed afterwards.
func (s *Store) Errored() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errored.sorted(s.processed)
}
