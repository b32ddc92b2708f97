package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	outputLockName   = ".csvsplit.lock"
	lockPollInterval = 10 * time.Millisecond

	// DefaultLockTimeout is how long a split waits for another split writing
	// into the same output directory.
	DefaultLockTimeout = 5 * time.Second
)

// dirLock is an exclusive OS-level lock on an output directory.
type dirLock struct {
	path  string
	flock *flock.Flock
}

// lockOutputDir takes an exclusive lock on dir so two splits cannot write
// shards into the same directory at once.
func lockOutputDir(ctx context.Context, dir string, timeout time.Duration) (*dirLock, error) {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	path := filepath.Join(dir, outputLockName)
	fl := flock.New(path)
	locked, err := fl.TryLockContext(lockCtx, lockPollInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, invalid(fmt.Errorf("%w: %s", ErrOutputBusy, dir))
		}
		return nil, ioError(fmt.Sprintf("lock output directory %s", dir), err)
	}
	if !locked {
		return nil, invalid(fmt.Errorf("%w: %s", ErrOutputBusy, dir))
	}
	return &dirLock{path: path, flock: fl}, nil
}

// release unlocks and removes the lock file.
func (l *dirLock) release() error {
	if l == nil {
		return nil
	}
	removeErr := os.Remove(l.path)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	return errors.Join(removeErr, l.flock.Unlock())
}
