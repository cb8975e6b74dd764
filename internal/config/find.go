package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the configuration file Find looks for.
const FileName = "blockvm.toml"

// ErrNotFound is returned by Find when no blockvm.toml exists in startDir or
// any parent.
var ErrNotFound = errors.New(FileName + " not found")

// Find walks up from startDir to locate blockvm.toml.
func Find(startDir string) (string, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ErrNotFound
}

// Root returns the directory holding blockvm.toml.
func Root(startDir string) (string, error) {
	path, err := Find(startDir)
	if err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}
