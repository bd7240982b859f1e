// Package memory keeps the local ledger in process memory.
package memory

import (
	"context"
	"sync"

	"kharcha/internal/core"
	"kharcha/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	mu    sync.Mutex
	items []core.Expense
}

func New(seed ...core.Expense) *Store {
	return &Store{items: append([]core.Expense(nil), seed...)}
}

func (s *Store) LoadAll(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense{}, s.items...), nil
}

func (s *Store) SaveAll(_ context.Context, records []core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]core.Expense(nil), records...)
	return nil
}
