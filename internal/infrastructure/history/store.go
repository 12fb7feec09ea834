// Package history persists aggregate runs so later reports can show deltas.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/scovctl/internal/domain"
)

// DefaultPath is where the CLI keeps history unless told otherwise.
const DefaultPath = ".scovctl/history.json"

// DefaultMaxEntries is the default number of history entries to keep.
const DefaultMaxEntries = 100

// FileStore stores history as one JSON document. Appends from concurrent
// processes are serialized with a lock file next to it.
type FileStore struct {
	Path       string
	MaxEntries int
}

// Load returns an empty history if the file doesn't exist.
func (s *FileStore) Load() (domain.History, error) {
	// #nosec G304 -- path is derived from trusted config
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.History{}, nil
		}
		return domain.History{}, err
	}

	var h domain.History
	if err := json.Unmarshal(data, &h); err != nil {
		return domain.History{}, fmt.Errorf("parse history %s: %w", s.Path, err)
	}
	return h, nil
}

// Save replaces the file through a temporary file and rename so readers
// never see a partial document.
func (s *FileStore) Save(h domain.History) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Append adds entry and trims the oldest entries beyond MaxEntries.
func (s *FileStore) Append(entry domain.HistoryEntry) error {
	lock, err := s.acquireLock()
	if err != nil {
		return fmt.Errorf("lock history: %w", err)
	}
	defer func() { _ = lock.release() }()

	h, err := s.Load()
	if err != nil {
		return err
	}

	h.Entries = append(h.Entries, entry)

	limit := s.MaxEntries
	if limit <= 0 {
		limit = DefaultMaxEntries
	}
	if len(h.Entries) > limit {
		h.Entries = h.Entries[len(h.Entries)-limit:]
	}

	return s.Save(h)
}
