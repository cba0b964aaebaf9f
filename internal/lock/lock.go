package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrBusy means another backup or restore holds the lock.
var ErrBusy = errors.New("another backup or restore is already running")

type Lock struct {
	file *flock.Flock
}

// DefaultPath is used when no lock file is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "shopbk.lock")
}

// Acquire obtains a filesystem lock so that backups and restores never
// overlap, not even across processes.
func Acquire(path string) (*Lock, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock: %s)", ErrBusy, path)
	}
	return &Lock{file: lock}, nil
}

// Release frees the lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Unlock()
}
