package workflow

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = errors.New("another clipmill run is already in progress")

// RunLock guards the store against concurrent pipeline runs.
type RunLock struct {
	path string
	lock *flock.Flock
}

// LockPathFor returns the lock file used for the store at storePath.
func LockPathFor(storePath string) string {
	return storePath + ".lock"
}

// AcquireRunLock takes the lock at path without waiting.
func AcquireRunLock(path string) (*RunLock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", path, err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return &RunLock{path: path, lock: lock}, nil
}

// Path returns the lock file path.
func (l *RunLock) Path() string {
	return l.path
}

// Release unlocks the run lock. It is safe to call more than once.
func (l *RunLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
