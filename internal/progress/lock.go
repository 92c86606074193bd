package progress

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile is the advisory lock taken for the duration of a run.
const LockFile = ".lock"

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("another run holds the run lock")

// Lock guards the state and staging directories against concurrent runs.
type Lock struct {
	held []*flock.Flock
}

// AcquireLock takes the run lock in every dir without blocking. Directories
// that resolve to the same path are locked once. If any lock is taken by
// another run, the ones already acquired are released.
func AcquireLock(dirs ...string) (*Lock, error) {
	l := &Lock{}
	seen := make(map[string]bool, len(dirs))

	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = filepath.Clean(dir)
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		fl := flock.New(filepath.Join(abs, LockFile))
		locked, err := fl.TryLock()
		if err != nil {
			l.Release()
			return nil, fmt.Errorf("locking %s: %w", fl.Path(), err)
		}
		if !locked {
			l.Release()
			return nil, fmt.Errorf("%w: %s", ErrLocked, fl.Path())
		}
		l.held = append(l.held, fl)
	}

	return l, nil
}

// Release drops every lock held.
func (l *Lock) Release() error {
	var errs []error
	for _, fl := range l.held {
		if err := fl.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("unlocking %s: %w", fl.Path(), err))
		}
	}
	l.held = nil
	return errors.Join(errs...)
}
