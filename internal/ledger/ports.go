// Package ledger defines the storage ports for expenses, categories and
// budgets.
package ledger

import (
	"context"

	"tally/internal/core"
	"tally/internal/filter"
)

// Ports for storage adapters. Lookups of a missing record return an error
// matching core.ErrNotFound.
type (
	ExpenseReader interface {
		// FindExpenses returns the expenses matching p ordered by date, then id.
		FindExpenses(ctx context.Context, p filter.Predicate) ([]core.Expense, error)
		GetExpense(ctx context.Context, id int64) (core.Expense, error)
	}

	CategoryReader interface {
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		GetCategoryByName(ctx context.Context, name string) (core.Category, error)
		CategoryExists(ctx context.Context, id int64) (bool, error)
		// CategoryNameExists ignores the category with id excludeID (0 for none).
		CategoryNameExists(ctx context.Context, name string, excludeID int64) (bool, error)
		// ListCategories returns every category ordered by name.
		ListCategories(ctx context.Context) ([]core.Category, error)
		CountExpensesByCategory(ctx context.Context, categoryID int64) (int, error)
	}

	BudgetReader interface {
		GetBudget(ctx context.Context, categoryID int64, month core.YearMonth) (core.Budget, error)
		// ListBudgets returns the budgets of one month ordered by category id.
		ListBudgets(ctx context.Context, month core.YearMonth) ([]core.Budget, error)
	}

	Reader interface {
		ExpenseReader
		CategoryReader
		BudgetReader
	}

	Writer interface {
		// SaveExpense inserts when e.ID is zero and updates otherwise. The
		// returned expense carries the assigned id and timestamps.
		SaveExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		DeleteExpense(ctx context.Context, id int64) error
		// SaveCategory fails with core.ErrConflict on a duplicate name.
		SaveCategory(ctx context.Context, c core.Category) (core.Category, error)
		// DeleteCategory fails with core.ErrConflict while expenses reference it.
		DeleteCategory(ctx context.Context, id int64) error
		// SaveBudget upserts on (category, month).
		SaveBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		DeleteBudget(ctx context.Context, categoryID int64, month core.YearMonth) error
	}

	// Tx is a transactional view. Its writes are visible to its own reads and
	// to nobody else until the transaction commits.
	Tx interface {
		Reader
		Writer
	}

	// Store is a ledger whose single operations are atomic. WithTx groups
	// several: if fn returns an error or panics every write made through tx is
	// discarded.
	Store interface {
		Tx
		WithTx(ctx context.Context, fn func(tx Tx) error) error
	}
)
