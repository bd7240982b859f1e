// Package ledger defines the local durable expense store.
//
// The local ledger is the source of truth for durable ids, deletion and every
// derived report. Implementations replace the whole collection on each save;
// there is no partial update.
package ledger

import (
	"context"

	"kharcha/internal/core"
	"kharcha/internal/log"
)

// Store is a whole-collection expense store.
type Store interface {
	// LoadAll returns every stored record in insertion order. A store that
	// has never been written returns an empty slice and no error.
	LoadAll(ctx context.Context) ([]core.Expense, error)

	// SaveAll atomically replaces the stored collection.
	SaveAll(ctx context.Context, records []core.Expense) error
}

// LoadOrEmpty reads the store and degrades any read failure to an empty
// ledger, so a corrupt store reads like a fresh one.
func LoadOrEmpty(ctx context.Context, s Store) []core.Expense {
	records, err := s.LoadAll(ctx)
	if err != nil {
		fields := log.NewFields().WithOperation(log.OpRead).WithError(err)
		log.FromContext(ctx).WithComponent(log.ComponentLedger).
			WarnContext(ctx, "Local ledger unreadable, treating as empty", fields.ToSlice()...)
		return []core.Expense{}
	}
	if records == nil {
		return []core.Expense{}
	}
	return records
}
