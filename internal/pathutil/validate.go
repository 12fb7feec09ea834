// Package pathutil provides utilities for safe path handling.
package pathutil

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath = errors.New("path is empty")
	ErrNullBytes = errors.New("path contains null bytes")
)

// ValidatePath cleans path and resolves symlinks when it exists.
// Paths that do not exist yet are returned cleaned.
func ValidatePath(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "\x00") {
		return "", ErrNullBytes
	}

	realPath, err := filepath.EvalSymlinks(cleaned)
	if err != nil {
		return cleaned, nil
	}
	return realPath, nil
}

// IsPathSafe reports whether path is non-empty, free of null bytes and
// does not climb above its starting directory.
func IsPathSafe(path string) bool {
	if path == "" || strings.Contains(path, "\x00") {
		return false
	}
	cleaned := filepath.Clean(path)
	return cleaned != ".." && !strings.HasPrefix(cleaned, ".."+string(filepath.Separator))
}
