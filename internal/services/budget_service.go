package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tally/internal/budget"
	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/log"
)

// BudgetService manages per-category monthly limits and reports spending
// against them.
type BudgetService struct {
	base
	store    ledger.Store
	enforcer *budget.Enforcer
}

func NewBudgetService(store ledger.Store, enforcer *budget.Enforcer, opts ...Option) *BudgetService {
	b := newBase(log.ComponentBudget, opts)
	if enforcer == nil {
		enforcer = budget.NewEnforcer(budget.DefaultPolicy(), b.logger)
	}
	return &BudgetService{base: b, store: store, enforcer: enforcer}
}

// Set creates or replaces the limit of a category for month.
func (s *BudgetService) Set(ctx context.Context, categoryID int64, month core.YearMonth, limit decimal.Decimal) (core.Budget, error) {
	b := core.Budget{CategoryID: categoryID, Month: month, Limit: limit}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	var saved core.Budget
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		ok, err := tx.CategoryExists(ctx, categoryID)
		if err != nil {
			return fmt.Errorf("check category: %w", err)
		}
		if !ok {
			return core.NewNotFound("category", categoryID)
		}
		saved, err = tx.SaveBudget(ctx, b)
		return err
	})
	if err != nil {
		return core.Budget{}, err
	}
	s.logger.InfoContext(ctx, "Budget set",
		log.FieldCategoryID, categoryID,
		log.FieldMonth, month.String(),
		log.FieldLimit, limit.StringFixed(2),
		log.FieldOperation, log.OpUpsert)
	s.committed(ctx, budgetEvent(saved))
	return saved, nil
}

// Delete removes the limit of a category for month.
func (s *BudgetService) Delete(ctx context.Context, categoryID int64, month core.YearMonth) error {
	if err := s.store.DeleteBudget(ctx, categoryID, month); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Budget deleted",
		log.FieldCategoryID, categoryID,
		log.FieldMonth, month.String(),
		log.FieldOperation, log.OpDelete)
	for _, inv := range s.invalidators {
		inv.Invalidate()
	}
	return nil
}

func (s *BudgetService) IsExceeded(ctx context.Context, categoryID int64, month core.YearMonth) (bool, error) {
	return budget.IsExceeded(ctx, s.store, categoryID, month)
}

func (s *BudgetService) Remaining(ctx context.Context, categoryID int64, month core.YearMonth) (decimal.Decimal, error) {
	return budget.Remaining(ctx, s.store, categoryID, month)
}

// MonthlyStatus reports every limit that applies to month, the global cap
// first.
func (s *BudgetService) MonthlyStatus(ctx context.Context, month core.YearMonth) ([]core.BudgetStatus, error) {
	if err := month.Validate(); err != nil {
		return nil, core.NewInvalidInput("invalid month: %v", err)
	}
	return s.enforcer.Status(ctx, s.store, month)
}
