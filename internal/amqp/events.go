package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a committed ledger change.
type EventType string

const (
	ExpenseCreated  EventType = "expense.created"
	ExpenseUpdated  EventType = "expense.updated"
	ExpenseDeleted  EventType = "expense.deleted"
	CategoryCreated EventType = "category.created"
	CategoryUpdated EventType = "category.updated"
	CategoryDeleted EventType = "category.deleted"
	BudgetSet       EventType = "budget.set"
)

func (t EventType) Valid() bool {
	switch t {
	case ExpenseCreated, ExpenseUpdated, ExpenseDeleted,
		CategoryCreated, CategoryUpdated, CategoryDeleted, BudgetSet:
		return true
	}
	return false
}

// LedgerEvent describes one committed write. Consumers use ID to drop
// redeliveries.
type LedgerEvent struct {
	ID         uuid.UUID       `json:"id"`
	Type       EventType       `json:"type"`
	EntityID   int64           `json:"entity_id"`
	CategoryID int64           `json:"category_id,omitempty"`
	Month      string          `json:"month,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewLedgerEvent creates an event with a fresh id and the current time.
func NewLedgerEvent(t EventType, entityID, categoryID int64, month string, amount decimal.Decimal) *LedgerEvent {
	return &LedgerEvent{
		ID:         uuid.New(),
		Type:       t,
		EntityID:   entityID,
		CategoryID: categoryID,
		Month:      month,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var evt LedgerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	if evt.ID == uuid.Nil {
		return nil, fmt.Errorf("event without id")
	}
	if !evt.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", evt.Type)
	}
	return &evt, nil
}
