package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	cerrors "github.com/Aman-CERP/clausecheck/internal/errors"
)

// LockFileName is the lock file held inside a data directory while it is
// being written.
const LockFileName = ".index.lock"

// DataDirLock is a cross-process exclusive lock on a data directory.
type DataDirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDataDirLock creates a lock for dataDir. The lock file is
// <dataDir>/.index.lock.
func NewDataDirLock(dataDir string) *DataDirLock {
	lockPath := filepath.Join(dataDir, LockFileName)
	return &DataDirLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock acquires the lock without blocking. A lock held by another
// process is reported as ErrCodeIndexLocked.
func (l *DataDirLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return cerrors.IOError("failed to create data directory", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return cerrors.IOError("failed to acquire index lock", err)
	}
	if !acquired {
		return cerrors.New(cerrors.ErrCodeIndexLocked,
			fmt.Sprintf("data directory %s is locked by another process", filepath.Dir(l.path)), nil).
			WithSuggestion("wait for the running 'clausecheck index' to finish")
	}

	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call on an unlocked lock.
func (l *DataDirLock) Unlock() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *DataDirLock) Path() string {
	return l.path
}
