// Package buildlock provides cross-process file locking for the archive
// Writer's temp-path-then-rename build step, adapted from the
// teacher's embed.FileLock (internal/embed/lock.go).
package buildlock

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/cxparchive/cxp/internal/cxperr"
)

// Lock guards one archive's build-to-temp-path step so two writers never
// race on the same output path.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New creates a lock file at <outputPath>.lock.
func New(outputPath string) *Lock {
	lockPath := outputPath + ".lock"
	return &Lock{path: lockPath, flock: flock.New(lockPath)}
}

// Lock acquires an exclusive lock, blocking until available.
func (l *Lock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return cxperr.Wrap(cxperr.ErrCodeLockFailure, err)
	}
	if err := l.flock.Lock(); err != nil {
		return cxperr.Wrap(cxperr.ErrCodeLockFailure, err)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call multiple times.
func (l *Lock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return cxperr.Wrap(cxperr.ErrCodeLockFailure, err)
	}
	l.locked = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return cxperr.Wrap(cxperr.ErrCodeLockFailure, err)
	}
	return nil
}
