// Package worker consumes ledger events published after committed writes.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"tally/internal/amqp"
	"tally/internal/log"
	"tally/internal/storage"
)

// AuditStore records ledger events. *storage.Store satisfies it.
type AuditStore interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) (bool, error)
}

// Consumer delivers events to a handler until ctx is done. *amqp.Client
// satisfies it.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

// AuditWorker appends every consumed ledger event to the audit log.
// Redeliveries of a recorded event are acknowledged without a second row.
type AuditWorker struct {
	store  AuditStore
	logger *log.Logger

	recorded   atomic.Int64
	duplicates atomic.Int64
}

func NewAuditWorker(store AuditStore, logger *log.Logger) *AuditWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &AuditWorker{
		store:  store,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent records evt. An error makes the consumer requeue the message.
func (w *AuditWorker) HandleEvent(ctx context.Context, evt *amqp.LedgerEvent) error {
	fields := log.NewFields().WithEvent(evt.ID.String(), string(evt.Type)).WithOperation(log.OpConsume)

	written, err := w.store.AppendAudit(ctx, storage.AuditEntry{
		EventID:    evt.ID.String(),
		EventType:  string(evt.Type),
		EntityID:   evt.EntityID,
		CategoryID: evt.CategoryID,
		Month:      evt.Month,
		Amount:     evt.Amount,
		OccurredAt: evt.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("record event %s: %w", evt.ID, err)
	}
	if !written {
		w.duplicates.Add(1)
		w.logger.DebugContext(ctx, "Duplicate ledger event ignored", fields.ToSlice()...)
		return nil
	}
	w.recorded.Add(1)
	w.logger.InfoContext(ctx, "Ledger event recorded", fields.ToSlice()...)
	return nil
}

// Run consumes events until ctx is cancelled.
func (w *AuditWorker) Run(ctx context.Context, c Consumer) error {
	w.logger.InfoContext(ctx, "Audit worker started")
	err := c.Consume(ctx, w.HandleEvent)
	w.logger.InfoContext(ctx, "Audit worker stopped",
		"recorded", w.recorded.Load(),
		"duplicates", w.duplicates.Load())
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Stats returns how many events were recorded and how many were duplicates.
func (w *AuditWorker) Stats() (recorded, duplicates int64) {
	return w.recorded.Load(), w.duplicates.Load()
}
