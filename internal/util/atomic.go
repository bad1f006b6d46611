// Package util provides small shared helpers: atomic file writes and
// bounded retry with transient-error classification.
package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteFile writes data to path via a temp file and rename, so readers
// never observe a partially written file. The parent directory is created if
// needed.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// AtomicWriteJSON marshals v with indentation and writes it atomically.
func AtomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return AtomicWriteFile(path, data, 0644)
}
