package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tally/internal/amqp"
	"tally/internal/budget"
	"tally/internal/core"
	"tally/internal/ledger/memory"
)

var fixedNow = time.Date(2024, time.May, 15, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	store      *memory.Store
	pub        *recordingPublisher
	reports    *ReportService
	expenses   *ExpenseService
	categories *CategoryService
	budgets    *BudgetService
}

func newFixture(t *testing.T, policy budget.Policy) *fixture {
	t.Helper()
	store := memory.New(memory.WithClock(clock))
	pub := &recordingPublisher{}
	reports := NewReportService(store, 16, time.Hour, WithClock(clock))
	opts := []Option{WithClock(clock), WithPublisher(pub), WithInvalidator(reports)}
	enforcer := budget.NewEnforcer(policy, nil)
	return &fixture{
		store:      store,
		pub:        pub,
		reports:    reports,
		expenses:   NewExpenseService(store, enforcer, opts...),
		categories: NewCategoryService(store, opts...),
		budgets:    NewBudgetService(store, enforcer, opts...),
	}
}

func (f *fixture) category(t *testing.T, name string) core.Category {
	t.Helper()
	c, err := f.categories.Create(context.Background(), core.Category{Name: name})
	require.NoError(t, err)
	return c
}

func (f *fixture) expense(t *testing.T, catID int64, amount, descr string, d core.Date) core.Expense {
	t.Helper()
	e, err := f.expenses.Create(context.Background(), core.Expense{
		Amount:      decimal.RequireFromString(amount),
		Description: descr,
		CategoryID:  catID,
		Date:        d,
	})
	require.NoError(t, err)
	return e
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	all, err := f.store.FindExpenses(context.Background(), nil)
	require.NoError(t, err)
	return len(all)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }
