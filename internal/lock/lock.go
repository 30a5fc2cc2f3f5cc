// Package lock guards a run against concurrent instances with a lock file.
package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("another run holds the lock")

type Lock struct {
	path  string
	flock *flock.Flock
}

// Acquire takes the lock at path without blocking and records the current pid inside.
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		holder := ""
		if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
			holder = " (pid " + string(data) + ")"
		}
		return nil, fmt.Errorf("%w: %s%s", ErrLocked, path, holder)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("write pid to %s: %w", path, err)
	}

	return &Lock{path: path, flock: fl}, nil
}

func (l *Lock) Path() string { return l.path }

// Release removes the lock file and then unlocks it. The file goes first so a
// new run cannot lock a path that is about to be removed.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	removeErr := os.Remove(l.path)
	if errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", l.path, err)
	}
	l.flock = nil
	if removeErr != nil {
		return fmt.Errorf("remove %s: %w", l.path, removeErr)
	}
	return nil
}
