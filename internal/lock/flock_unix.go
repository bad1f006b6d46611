//go:build !windows

// Package lock provides cross-process advisory file locking.
package lock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FlockAcquire opens a flock file and acquires an exclusive advisory lock.
// Returns a cleanup function that releases the lock and closes the file.
// This is a general-purpose cross-process lock suitable for any
// read-modify-write operation that needs serialization across separate
// CLI invocations.
func FlockAcquire(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644) //nolint:gosec // G304,G306: lock files are internal operational data
	if err != nil {
		return nil, fmt.Errorf("opening flock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquiring flock: %w", err)
	}

	cleanup := func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN) //nolint:errcheck
		f.Close()
	}
	return cleanup, nil
}

// FlockTryAcquire attempts a non-blocking exclusive advisory lock on the
// given path. Returns (cleanup, true, nil) if the lock was acquired, or
// (nil, false, nil) if another process already holds it.
func FlockTryAcquire(path string) (func(), bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644) //nolint:gosec // G304,G306: lock files are internal operational data
	if err != nil {
		return nil, false, fmt.Errorf("opening flock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquiring flock: %w", err)
	}

	cleanup := func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN) //nolint:errcheck
		f.Close()
	}
	return cleanup, true, nil
}
