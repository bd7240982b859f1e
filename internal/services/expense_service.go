// Package services reconciles the local ledger with the remote sheet.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"kharcha/internal/core"
	"kharcha/internal/ledger"
	"kharcha/internal/log"
	"kharcha/internal/sheets"
)

// EventPublisher announces ledger mutations. Publishing is best-effort.
type EventPublisher interface {
	ExpenseCreated(ctx context.Context, e core.Expense) error
	ExpenseDeleted(ctx context.Context, id string) error
}

// Listing is a list result and the store that served it.
type Listing struct {
	Expenses []core.Expense
	Source   core.Source
}

// remoteHeaderRows is the number of rows above the first data row.
const remoteHeaderRows = 1

// ExpenseService orchestrates expense operations across the local ledger,
// the remote sheet and the event publisher.
//
// The local ledger is authoritative for ids and deletion. The remote sheet
// is preferred for listing when reachable and mirrored best-effort on every
// mutation.
type ExpenseService struct {
	local  ledger.Store
	remote sheets.Connector
	events EventPublisher
	now    func() time.Time
	writer *semaphore.Weighted
	logger *log.Logger
}

type Option func(*ExpenseService)

func WithEvents(p EventPublisher) Option {
	return func(s *ExpenseService) { s.events = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *ExpenseService) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *ExpenseService) { s.logger = l }
}

func NewExpenseService(local ledger.Store, remote sheets.Connector, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		local:  local,
		remote: remote,
		now:    time.Now,
		writer: semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.remote == nil {
		s.remote = sheets.Disabled{}
	}
	if s.logger == nil {
		s.logger = log.New(log.Config{Component: log.ComponentReconcile, Handler: slog.Default().Handler()})
	}
	return s
}

// List returns the remote sheet's rows when it is reachable and readable,
// otherwise the local ledger. It never fails.
func (s *ExpenseService) List(ctx context.Context) Listing {
	records, err := s.listRemote(ctx)
	if err == nil {
		return Listing{Expenses: records, Source: core.SourceRemote}
	}

	s.logger.InfoContext(ctx, "Listing from local ledger",
		log.FieldOperation, log.OpList,
		log.FieldRemoteStatus, err.Error())
	return Listing{Expenses: ledger.LoadOrEmpty(ctx, s.local), Source: core.SourceLocal}
}

var errRemoteUnavailable = errors.New("remote ledger unavailable")

func (s *ExpenseService) listRemote(ctx context.Context) ([]core.Expense, error) {
	session, ok := s.remote.Connect(ctx).Session()
	if !ok {
		return nil, errRemoteUnavailable
	}

	rows, err := session.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read remote: %w", err)
	}

	records := make([]core.Expense, 0, len(rows))
	for i, row := range rows {
		e, err := expenseFromRow(i, row)
		if err != nil {
			return nil, fmt.Errorf("remote row %d: %w", i, err)
		}
		records = append(records, e)
	}
	return records, nil
}

// expenseFromRow maps a sheet row to a record whose id is its position.
func expenseFromRow(pos int, row sheets.Row) (core.Expense, error) {
	var amount float64
	if v, ok := row["Amount"]; ok && v != nil && v != "" {
		a, err := core.AmountFromValue(v)
		if err != nil {
			return core.Expense{}, err
		}
		amount = a
	}
	return core.Expense{
		ID:        strconv.Itoa(pos),
		Date:      core.CellText(row["Date"]),
		Amount:    amount,
		Reason:    core.CellText(row["Reason"]),
		Timestamp: core.CellText(row["Timestamp"]),
	}, nil
}

// Add records a new expense. Its id is the local record count before the
// insert. Only a failed local save is an error.
func (s *ExpenseService) Add(ctx context.Context, in core.NewExpense) (core.Expense, error) {
	if err := s.writer.Acquire(ctx, 1); err != nil {
		return core.Expense{}, fmt.Errorf("acquire ledger writer: %w", err)
	}
	defer s.writer.Release(1)

	id := strconv.Itoa(len(ledger.LoadOrEmpty(ctx, s.local)))
	rec := core.NewRecord(id, in, s.now())

	s.appendRemote(ctx, rec)

	records := append(ledger.LoadOrEmpty(ctx, s.local), rec)
	if err := s.local.SaveAll(ctx, records); err != nil {
		s.logger.Failure(ctx, "Failed to save expense locally", log.OpCreate, err,
			log.FieldExpenseID, rec.ID)
		return core.Expense{}, fmt.Errorf("%w: %w", core.ErrSaveFailed, err)
	}

	fields := log.NewFields().WithOperation(log.OpCreate).
		WithExpense(rec.ID, rec.Date, rec.Amount, rec.Reason)
	s.logger.InfoContext(ctx, "Expense added", fields.ToSlice()...)

	if s.events != nil {
		if err := s.events.ExpenseCreated(ctx, rec); err != nil {
			s.logger.Failure(ctx, "Failed to publish expense event", log.OpPublish, err,
				log.FieldExpenseID, rec.ID)
		}
	}
	return rec, nil
}

func (s *ExpenseService) appendRemote(ctx context.Context, rec core.Expense) {
	conn := s.remote.Connect(ctx)
	session, ok := conn.Session()
	if !ok {
		s.logger.DebugContext(ctx, "Skipping remote append",
			log.FieldExpenseID, rec.ID, log.FieldRemoteStatus, conn.Reason())
		return
	}
	if err := sheets.AppendExpense(ctx, session, rec.Date, rec.Amount, rec.Reason, rec.Timestamp); err != nil {
		s.logger.WarnContext(ctx, "Remote append failed",
			log.FieldOperation, log.OpAppend,
			log.FieldExpenseID, rec.ID,
			log.FieldError, err)
	}
}

// Delete removes every local record with the given id and the remote row at
// the matching position. Missing ids and remote failures are not errors; an
// id that is not an integer is.
func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	n, err := core.ParseID(id)
	if err != nil {
		return err
	}

	if err := s.writer.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire ledger writer: %w", err)
	}
	defer s.writer.Release(1)

	records := ledger.LoadOrEmpty(ctx, s.local)
	kept := make([]core.Expense, 0, len(records))
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if err := s.local.SaveAll(ctx, kept); err != nil {
		s.logger.Failure(ctx, "Failed to save ledger after delete", log.OpDelete, err,
			log.FieldExpenseID, id)
	}

	s.deleteRemote(ctx, n+remoteHeaderRows+1)

	s.logger.InfoContext(ctx, "Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldExpenseID, id,
		log.FieldCount, len(records)-len(kept))

	if s.events != nil {
		if err := s.events.ExpenseDeleted(ctx, id); err != nil {
			s.logger.Failure(ctx, "Failed to publish expense event", log.OpPublish, err,
				log.FieldExpenseID, id)
		}
	}
	return nil
}

// deleteRemote removes the 1-based sheet row at position. The header row is
// never removed.
func (s *ExpenseService) deleteRemote(ctx context.Context, position int) {
	if position <= remoteHeaderRows {
		return
	}
	conn := s.remote.Connect(ctx)
	session, ok := conn.Session()
	if !ok {
		s.logger.DebugContext(ctx, "Skipping remote delete",
			log.FieldPosition, position, log.FieldRemoteStatus, conn.Reason())
		return
	}

	count, err := session.RowCount(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Remote row count failed",
			log.FieldOperation, log.OpDelete, log.FieldError, err)
		return
	}
	if position > count {
		return
	}
	if err := session.DeleteRow(ctx, position); err != nil {
		s.logger.WarnContext(ctx, "Remote delete failed",
			log.FieldOperation, log.OpDelete,
			log.FieldPosition, position,
			log.FieldError, err)
	}
}
