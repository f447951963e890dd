// Package budget enforces monthly spending limits on expense writes.
//
// Two limits apply to the calendar month of the expense date: a global cap
// over every category and the per-category Budget configured for that month.
// A write is refused when the projected month total reaches a limit.
package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tally/internal/analytics"
	"tally/internal/core"
	"tally/internal/filter"
	"tally/internal/ledger"
	"tally/internal/log"
)

// DefaultGlobalMonthlyLimit applies when no global cap is configured.
var DefaultGlobalMonthlyLimit = decimal.NewFromInt(5000)

// Policy configures enforcement. A zero GlobalMonthlyLimit disables the global
// cap.
type Policy struct {
	GlobalMonthlyLimit decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{GlobalMonthlyLimit: DefaultGlobalMonthlyLimit}
}

type Enforcer struct {
	policy Policy
	logger *log.StructuredLogger
}

func NewEnforcer(policy Policy, logger *log.Logger) *Enforcer {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Enforcer{
		policy: policy,
		logger: log.NewStructuredLogger(logger.WithComponent(log.ComponentBudget)),
	}
}

func (e *Enforcer) Policy() Policy {
	return e.policy
}

// Check reports whether candidate fits under every limit of its month. When
// candidate.ID is set the stored version of that expense is left out of the
// current totals, so an update is measured against the other expenses only.
func (e *Enforcer) Check(ctx context.Context, r ledger.Reader, candidate core.Expense) error {
	month := candidate.Date.YearMonth()

	if e.policy.GlobalMonthlyLimit.IsPositive() {
		current, err := spentExcluding(ctx, r, filter.Month(month, nil), candidate.ID)
		if err != nil {
			return err
		}
		projected := current.Add(candidate.Amount)
		if projected.GreaterThanOrEqual(e.policy.GlobalMonthlyLimit) {
			e.logger.LogBudgetRejected(ctx, 0, month.String(), e.policy.GlobalMonthlyLimit.StringFixed(2), projected.StringFixed(2))
			return core.NewBudgetExceeded("adding this expense exceeds the monthly budget of %s for %s", e.policy.GlobalMonthlyLimit.StringFixed(2), month)
		}
	}

	b, err := r.GetBudget(ctx, candidate.CategoryID, month)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get budget: %w", err)
	}
	catID := candidate.CategoryID
	current, err := spentExcluding(ctx, r, filter.Month(month, &catID), candidate.ID)
	if err != nil {
		return err
	}
	projected := current.Add(candidate.Amount)
	if projected.GreaterThanOrEqual(b.Limit) {
		e.logger.LogBudgetRejected(ctx, catID, month.String(), b.Limit.StringFixed(2), projected.StringFixed(2))
		return core.NewBudgetExceeded("adding this expense exceeds the %s budget of %s for category %d", month, b.Limit.StringFixed(2), catID)
	}
	return nil
}

// Save checks candidate and persists it in one transaction. Nothing is written
// when a limit is reached or the save fails.
func (e *Enforcer) Save(ctx context.Context, store ledger.Store, candidate core.Expense) (core.Expense, error) {
	var saved core.Expense
	err := store.WithTx(ctx, func(tx ledger.Tx) error {
		if err := e.Check(ctx, tx, candidate); err != nil {
			return err
		}
		var err error
		saved, err = tx.SaveExpense(ctx, candidate)
		return err
	})
	if err != nil {
		return core.Expense{}, err
	}
	return saved, nil
}

func spentExcluding(ctx context.Context, r ledger.ExpenseReader, p filter.Predicate, excludeID int64) (decimal.Decimal, error) {
	list, err := r.FindExpenses(ctx, p)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load month expenses: %w", err)
	}
	if excludeID != 0 {
		kept := list[:0]
		for _, x := range list {
			if x.ID != excludeID {
				kept = append(kept, x)
			}
		}
		list = kept
	}
	return analytics.Total(list), nil
}

// Spent totals the expenses of one category in one month.
func Spent(ctx context.Context, r ledger.ExpenseReader, categoryID int64, month core.YearMonth) (decimal.Decimal, error) {
	return spentExcluding(ctx, r, filter.Month(month, &categoryID), 0)
}

// lookup resolves the budget of an existing category.
func lookup(ctx context.Context, r ledger.Reader, categoryID int64, month core.YearMonth) (core.Budget, decimal.Decimal, error) {
	ok, err := r.CategoryExists(ctx, categoryID)
	if err != nil {
		return core.Budget{}, decimal.Zero, fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return core.Budget{}, decimal.Zero, core.NewNotFound("category", categoryID)
	}
	b, err := r.GetBudget(ctx, categoryID, month)
	if errors.Is(err, core.ErrNotFound) {
		return core.Budget{}, decimal.Zero, core.NewBudgetNotFound(categoryID, month)
	}
	if err != nil {
		return core.Budget{}, decimal.Zero, fmt.Errorf("get budget: %w", err)
	}
	spent, err := Spent(ctx, r, categoryID, month)
	if err != nil {
		return core.Budget{}, decimal.Zero, err
	}
	return b, spent, nil
}

// IsExceeded reports whether spending in the month is strictly above the
// category budget.
func IsExceeded(ctx context.Context, r ledger.Reader, categoryID int64, month core.YearMonth) (bool, error) {
	b, spent, err := lookup(ctx, r, categoryID, month)
	if err != nil {
		return false, err
	}
	return spent.GreaterThan(b.Limit), nil
}

// Remaining returns limit minus spent. It fails with BudgetExceeded once
// spending is above the limit.
func Remaining(ctx context.Context, r ledger.Reader, categoryID int64, month core.YearMonth) (decimal.Decimal, error) {
	b, spent, err := lookup(ctx, r, categoryID, month)
	if err != nil {
		return decimal.Zero, err
	}
	if spent.GreaterThan(b.Limit) {
		return decimal.Zero, core.NewBudgetExceeded("the %s budget of %s for category %d is exceeded by %s",
			month, b.Limit.StringFixed(2), categoryID, spent.Sub(b.Limit).StringFixed(2))
	}
	return b.Limit.Sub(spent), nil
}

// Status reports every category budget of month and, when the global cap is
// enabled, the cap itself as a row with CategoryID 0.
func (e *Enforcer) Status(ctx context.Context, r ledger.Reader, month core.YearMonth) ([]core.BudgetStatus, error) {
	budgets, err := r.ListBudgets(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	all, err := r.FindExpenses(ctx, filter.Month(month, nil))
	if err != nil {
		return nil, fmt.Errorf("load month expenses: %w", err)
	}

	out := make([]core.BudgetStatus, 0, len(budgets)+1)
	if e.policy.GlobalMonthlyLimit.IsPositive() {
		out = append(out, status(0, "", month, e.policy.GlobalMonthlyLimit, analytics.Total(all)))
	}
	for _, b := range budgets {
		c, err := r.GetCategory(ctx, b.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("get category %d: %w", b.CategoryID, err)
		}
		spent := analytics.Total(filter.Category(b.CategoryID).Apply(all))
		out = append(out, status(b.CategoryID, c.Name, month, b.Limit, spent))
	}
	return out, nil
}

func status(categoryID int64, name string, month core.YearMonth, limit, spent decimal.Decimal) core.BudgetStatus {
	remaining := limit.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return core.BudgetStatus{
		CategoryID:   categoryID,
		CategoryName: name,
		Month:        month,
		Limit:        limit,
		Spent:        spent,
		Remaining:    remaining,
		Exceeded:     spent.GreaterThan(limit),
	}
}
