// Package memory is an in-process remote ledger for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"kharcha/internal/sheets"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("injected remote failure")

// Sheet holds a values matrix shaped like a worksheet: row 0 is the header
// once anything has been written.
type Sheet struct {
	mu        sync.Mutex
	values    [][]any
	available bool
	failing   map[string]bool
}

var (
	_ sheets.Connector = (*Sheet)(nil)
	_ sheets.Session   = (*Sheet)(nil)
)

// New returns an available sheet holding values.
func New(values ...[]any) *Sheet {
	return &Sheet{values: values, available: true, failing: map[string]bool{}}
}

// SetAvailable toggles whether Connect yields a session.
func (s *Sheet) SetAvailable(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = ok
}

// FailOn makes the named operation ("read", "append", "delete", "count")
// fail until cleared with fail=false.
func (s *Sheet) FailOn(op string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[op] = fail
}

// Values returns a copy of the stored matrix.
func (s *Sheet) Values() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.values))
	for i, row := range s.values {
		out[i] = append([]any(nil), row...)
	}
	return out
}

func (s *Sheet) Connect(context.Context) sheets.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.available {
		return sheets.Unavailable("remote ledger offline")
	}
	return sheets.Connected(s)
}

func (s *Sheet) ReadAll(context.Context) ([]sheets.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing["read"] {
		return nil, ErrInjected
	}
	return sheets.RowsFromValues(s.values), nil
}

func (s *Sheet) Append(_ context.Context, row []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing["append"] {
		return ErrInjected
	}
	s.values = append(s.values, append([]any(nil), row...))
	return nil
}

func (s *Sheet) DeleteRow(_ context.Context, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing["delete"] {
		return ErrInjected
	}
	if position < 1 || position > len(s.values) {
		return nil
	}
	s.values = append(s.values[:position-1], s.values[position:]...)
	return nil
}

func (s *Sheet) RowCount(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing["count"] {
		return 0, ErrInjected
	}
	return len(s.values), nil
}
