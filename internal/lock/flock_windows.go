//go:build windows

package lock

import (
	"fmt"
	"os"
)

// FlockAcquire on Windows opens the lock file without advisory locking.
// Sequence serialization on Windows relies on the daemon-level flock from
// gofrs/flock, which is cross-platform.
func FlockAcquire(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening flock file: %w", err)
	}
	return func() { f.Close() }, nil
}

// FlockTryAcquire on Windows always reports the lock as acquired.
func FlockTryAcquire(path string) (func(), bool, error) {
	cleanup, err := FlockAcquire(path)
	if err != nil {
		return nil, false, err
	}
	return cleanup, true, nil
}
