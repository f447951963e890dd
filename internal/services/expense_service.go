package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tally/internal/amqp"
	"tally/internal/budget"
	"tally/internal/core"
	"tally/internal/filter"
	"tally/internal/ledger"
	"tally/internal/log"
)

// ExpenseService validates expense writes and commits them through the budget
// enforcer.
type ExpenseService struct {
	base
	store    ledger.Store
	enforcer *budget.Enforcer
	sl       *log.StructuredLogger
}

func NewExpenseService(store ledger.Store, enforcer *budget.Enforcer, opts ...Option) *ExpenseService {
	b := newBase(log.ComponentExpense, opts)
	if enforcer == nil {
		enforcer = budget.NewEnforcer(budget.DefaultPolicy(), b.logger)
	}
	return &ExpenseService{
		base:     b,
		store:    store,
		enforcer: enforcer,
		sl:       log.NewStructuredLogger(b.logger),
	}
}

// ExpenseUpdate holds the fields of a partial update. Nil fields are kept.
type ExpenseUpdate struct {
	Amount      *decimal.Decimal
	Description *string
	CategoryID  *int64
	Date        *core.Date
}

// Create validates e, checks it against the budgets of its month and stores
// it. Nothing is stored when a check fails.
func (s *ExpenseService) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = 0
	e.Description = strings.TrimSpace(e.Description)
	rules := core.DateRules{Today: s.today(), MaxAgeMonths: s.maxAgeMonths}
	if err := e.Validate(rules); err != nil {
		return core.Expense{}, err
	}
	if err := s.requireCategory(ctx, e.CategoryID); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.enforcer.Save(ctx, s.store, e)
	if err != nil {
		return core.Expense{}, err
	}
	s.sl.LogExpenseSaved(ctx, log.OpCreate, saved.ID, saved.Description, saved.Amount.StringFixed(2), saved.CategoryID, saved.Date.YearMonth().String())
	s.committed(ctx, expenseEvent(amqp.ExpenseCreated, saved))
	return saved, nil
}

// Update applies the present fields of u to expense id and re-checks the
// budgets of the resulting month, leaving the expense's stored amount out of
// the current totals. The age bound applies only when the date changes.
func (s *ExpenseService) Update(ctx context.Context, id int64, u ExpenseUpdate) (core.Expense, error) {
	current, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}

	next := current
	rules := core.DateRules{Today: s.today()}
	if u.Amount != nil {
		next.Amount = *u.Amount
	}
	if u.Description != nil {
		next.Description = strings.TrimSpace(*u.Description)
	}
	if u.CategoryID != nil {
		next.CategoryID = *u.CategoryID
	}
	if u.Date != nil {
		next.Date = *u.Date
		rules.MaxAgeMonths = s.maxAgeMonths
	}
	if err := next.Validate(rules); err != nil {
		return core.Expense{}, err
	}
	if next.CategoryID != current.CategoryID {
		if err := s.requireCategory(ctx, next.CategoryID); err != nil {
			return core.Expense{}, err
		}
	}

	saved, err := s.enforcer.Save(ctx, s.store, next)
	if err != nil {
		return core.Expense{}, err
	}
	s.sl.LogExpenseSaved(ctx, log.OpUpdate, saved.ID, saved.Description, saved.Amount.StringFixed(2), saved.CategoryID, saved.Date.YearMonth().String())
	s.committed(ctx, expenseEvent(amqp.ExpenseUpdated, saved))
	return saved, nil
}

func (s *ExpenseService) Delete(ctx context.Context, id int64) error {
	var removed core.Expense
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		var err error
		if removed, err = tx.GetExpense(ctx, id); err != nil {
			return err
		}
		return tx.DeleteExpense(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Expense deleted",
		log.FieldExpenseID, id,
		log.FieldOperation, log.OpDelete)
	s.committed(ctx, expenseEvent(amqp.ExpenseDeleted, removed))
	return nil
}

func (s *ExpenseService) Get(ctx context.Context, id int64) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

// Filter returns the expenses matching every present criterion.
func (s *ExpenseService) Filter(ctx context.Context, c filter.Criteria) ([]core.Expense, error) {
	p, err := c.Build()
	if err != nil {
		return nil, err
	}
	list, err := s.store.FindExpenses(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("find expenses: %w", err)
	}
	return list, nil
}

// Search matches keyword against descriptions and category names. An empty
// keyword returns every expense.
func (s *ExpenseService) Search(ctx context.Context, keyword string) ([]core.Expense, error) {
	list, err := s.store.FindExpenses(ctx, filter.Search(keyword))
	if err != nil {
		return nil, fmt.Errorf("search expenses: %w", err)
	}
	return list, nil
}

// CurrentMonth returns the expenses of the month containing today.
func (s *ExpenseService) CurrentMonth(ctx context.Context) ([]core.Expense, error) {
	list, err := s.store.FindExpenses(ctx, filter.Month(s.today().YearMonth(), nil))
	if err != nil {
		return nil, fmt.Errorf("find current month expenses: %w", err)
	}
	return list, nil
}

func (s *ExpenseService) requireCategory(ctx context.Context, id int64) error {
	ok, err := s.store.CategoryExists(ctx, id)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return core.NewNotFound("category", id)
	}
	return nil
}
