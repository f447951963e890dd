package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tally/internal/amqp"
	"tally/internal/storage"
)

type memAudit struct {
	seen map[string]storage.AuditEntry
	err  error
}

func (m *memAudit) AppendAudit(_ context.Context, e storage.AuditEntry) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.seen[e.EventID]; ok {
		return false, nil
	}
	m.seen[e.EventID] = e
	return true, nil
}

type sliceConsumer struct {
	events []*amqp.LedgerEvent
	errs   []error
}

func (c *sliceConsumer) Consume(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error {
	for _, evt := range c.events {
		c.errs = append(c.errs, handler(ctx, evt))
	}
	return errors.New("message channel closed")
}

func TestHandleEventRecordsOnce(t *testing.T) {
	store := &memAudit{seen: map[string]storage.AuditEntry{}}
	w := NewAuditWorker(store, nil)
	evt := amqp.NewLedgerEvent(amqp.ExpenseCreated, 7, 3, "2024-05", decimal.RequireFromString("12.50"))

	if err := w.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if err := w.HandleEvent(context.Background(), evt); err != nil {
		t.Fatalf("HandleEvent redelivery: %v", err)
	}

	got, ok := store.seen[evt.ID.String()]
	if !ok {
		t.Fatalf("event not recorded")
	}
	if got.EntityID != 7 || got.CategoryID != 3 || got.Month != "2024-05" || got.EventType != "expense.created" {
		t.Errorf("unexpected entry %+v", got)
	}
	if recorded, dup := w.Stats(); recorded != 1 || dup != 1 {
		t.Errorf("expected 1 recorded and 1 duplicate, got %d and %d", recorded, dup)
	}
}

func TestHandleEventStoreFailure(t *testing.T) {
	w := NewAuditWorker(&memAudit{err: errors.New("disk full")}, nil)
	evt := amqp.NewLedgerEvent(amqp.BudgetSet, 1, 1, "2024-05", decimal.NewFromInt(200))
	if err := w.HandleEvent(context.Background(), evt); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
}

func TestRun(t *testing.T) {
	store := &memAudit{seen: map[string]storage.AuditEntry{}}
	w := NewAuditWorker(store, nil)
	c := &sliceConsumer{events: []*amqp.LedgerEvent{
		amqp.NewLedgerEvent(amqp.CategoryCreated, 1, 1, "", decimal.Zero),
		amqp.NewLedgerEvent(amqp.ExpenseDeleted, 2, 1, "2024-05", decimal.NewFromInt(5)),
	}}

	if err := w.Run(context.Background(), c); err == nil {
		t.Fatal("expected the consumer error when the channel closes")
	}
	if len(store.seen) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(store.seen))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx, &sliceConsumer{}); err != nil {
		t.Fatalf("cancelled run should return nil, got %v", err)
	}
}
