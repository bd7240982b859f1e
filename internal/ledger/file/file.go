// Package file stores the local ledger as an indented JSON array on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"kharcha/internal/core"
	"kharcha/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	mu   sync.RWMutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// LoadAll reads the JSON array. A missing or empty file is an empty ledger.
func (s *Store) LoadAll(_ context.Context) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []core.Expense{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger file %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return []core.Expense{}, nil
	}

	var records []core.Expense
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode ledger file %s: %w", s.path, err)
	}
	if records == nil {
		records = []core.Expense{}
	}
	return records, nil
}

// SaveAll writes the collection to a temp file in the same directory and
// renames it over the ledger, so readers see either the old or new file.
func (s *Store) SaveAll(_ context.Context, records []core.Expense) error {
	if records == nil {
		records = []core.Expense{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp ledger file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}
