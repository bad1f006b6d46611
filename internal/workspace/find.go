// Package workspace provides yard root detection.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/drovertools/drover/internal/constants"
)

// ErrNotFound indicates no yard was found.
var ErrNotFound = errors.New("not in a drover yard")

// Find locates the yard root by walking up from the given directory.
// A yard is identified by the presence of drover.toml.
// Does not resolve symlinks to stay consistent with os.Getwd().
func Find(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	current := absDir
	for {
		if _, err := os.Stat(filepath.Join(current, constants.ConfigFile)); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrNotFound
		}
		current = parent
	}
}

// FindFromCwd locates the yard root starting from the working directory.
func FindFromCwd() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return Find(cwd)
}

// FindFromCwdOrError is like FindFromCwd but returns a user-friendly error
// explaining how to create a yard.
func FindFromCwdOrError() (string, error) {
	root, err := FindFromCwd()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w (run 'drover init' to create one)", ErrNotFound)
		}
		return "", err
	}
	return root, nil
}
