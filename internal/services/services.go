// Package services orchestrates ledger operations: validation, budget
// enforcement, report caching and event publishing around a ledger.Store.
package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/log"
)

// DefaultMaxExpenseAgeMonths bounds how old a new expense date may be.
const DefaultMaxExpenseAgeMonths = 12

// EventPublisher sends ledger events after a write commits. *amqp.Client
// satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, evt *amqp.LedgerEvent) error
}

// Invalidator drops derived data after a committed write.
type Invalidator interface {
	Invalidate()
}

type Option func(*base)

// WithPublisher enables event publishing. A nil publisher disables it.
func WithPublisher(p EventPublisher) Option {
	return func(b *base) { b.publisher = p }
}

func WithLogger(l *log.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock sets the source of "today" for date validation and reports.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithInvalidator registers a cache to drop after every committed write.
func WithInvalidator(inv Invalidator) Option {
	return func(b *base) {
		if inv != nil {
			b.invalidators = append(b.invalidators, inv)
		}
	}
}

// WithMaxExpenseAge sets how many months back an expense date may go. Zero
// disables the bound.
func WithMaxExpenseAge(months int) Option {
	return func(b *base) { b.maxAgeMonths = months }
}

// base carries what every service shares.
type base struct {
	publisher    EventPublisher
	invalidators []Invalidator
	logger       *log.Logger
	now          func() time.Time
	maxAgeMonths int
}

func newBase(component string, opts []Option) base {
	b := base{
		logger:       log.New(log.DefaultConfig()),
		now:          time.Now,
		maxAgeMonths: DefaultMaxExpenseAgeMonths,
	}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.WithComponent(component)
	return b
}

func (b *base) today() core.Date {
	return core.DateOf(b.now())
}

// committed runs the post-commit side effects of a write. Neither can fail
// the write.
func (b *base) committed(ctx context.Context, evt *amqp.LedgerEvent) {
	for _, inv := range b.invalidators {
		inv.Invalidate()
	}
	if b.publisher == nil {
		b.logger.WarnContext(ctx, "AMQP client not available, skipping ledger event",
			log.FieldEventType, string(evt.Type))
		return
	}
	if err := b.publisher.Publish(ctx, evt); err != nil {
		b.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldError, err.Error(),
			log.FieldEventID, evt.ID.String(),
			log.FieldEventType, string(evt.Type))
	}
}

func expenseEvent(t amqp.EventType, e core.Expense) *amqp.LedgerEvent {
	return amqp.NewLedgerEvent(t, e.ID, e.CategoryID, e.Date.YearMonth().String(), e.Amount)
}

func categoryEvent(t amqp.EventType, c core.Category) *amqp.LedgerEvent {
	return amqp.NewLedgerEvent(t, c.ID, c.ID, "", decimal.Zero)
}

func budgetEvent(b core.Budget) *amqp.LedgerEvent {
	return amqp.NewLedgerEvent(amqp.BudgetSet, b.ID, b.CategoryID, b.Month.String(), b.Limit)
}
