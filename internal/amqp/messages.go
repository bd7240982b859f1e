package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"kharcha/internal/core"
)

// Event types double as routing keys on the topic exchange.
const (
	EventExpenseCreated = "expense.created"
	EventExpenseDeleted = "expense.deleted"
)

// LedgerEvent announces a mutation of the local ledger.
type LedgerEvent struct {
	EventID    string        `json:"event_id"`
	Type       string        `json:"type"`
	ExpenseID  string        `json:"expense_id"`
	Expense    *core.Expense `json:"expense,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func NewCreatedEvent(e core.Expense, at time.Time) LedgerEvent {
	return LedgerEvent{
		EventID:    uuid.NewString(),
		Type:       EventExpenseCreated,
		ExpenseID:  e.ID,
		Expense:    &e,
		OccurredAt: at.UTC(),
	}
}

func NewDeletedEvent(id string, at time.Time) LedgerEvent {
	return LedgerEvent{
		EventID:    uuid.NewString(),
		Type:       EventExpenseDeleted,
		ExpenseID:  id,
		OccurredAt: at.UTC(),
	}
}

func (m LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return LedgerEvent{}, err
	}
	return msg, nil
}
