package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"tally/internal/core"
	"tally/internal/filter"
	"tally/internal/ledger"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ ledger.Tx = (*Queries)(nil)

// Queries implements the ledger ports over one connection or transaction.
type Queries struct {
	db  DBTX
	now func() time.Time
}

func (q *Queries) withTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, now: q.now}
}

func (q *Queries) timestamp() string {
	return q.now().UTC().Format(time.RFC3339Nano)
}

const expenseColumns = `e.id, e.amount_cents, e.description, e.category_id, c.name, e.expense_date, e.created_at, e.updated_at`

const expenseFrom = ` FROM expenses e JOIN categories c ON c.id = e.category_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                core.Expense
		cents            int64
		date             string
		created, updated string
	)
	if err := row.Scan(&e.ID, &cents, &e.Description, &e.CategoryID, &e.CategoryName, &date, &created, &updated); err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, err
	}
	e.Amount = core.FromCents(cents)
	e.Date = d
	e.CreatedAt = parseTimestamp(created)
	e.UpdatedAt = parseTimestamp(updated)
	return e, nil
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (q *Queries) FindExpenses(ctx context.Context, p filter.Predicate) ([]core.Expense, error) {
	where, args := whereClause(p)
	rows, err := q.db.QueryContext(ctx, `SELECT `+expenseColumns+expenseFrom+where+` ORDER BY e.expense_date ASC, e.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *Queries) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := scanExpense(q.db.QueryRowContext(ctx, `SELECT `+expenseColumns+expenseFrom+` WHERE e.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.NewNotFound("expense", id)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func (q *Queries) SaveExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	amount, err := core.CheckedCents("amount", e.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	now := q.timestamp()
	if e.ID == 0 {
		res, err := q.db.ExecContext(ctx,
			`INSERT INTO expenses (amount_cents, description, category_id, expense_date, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			amount, e.Description, e.CategoryID, e.Date.String(), now, now)
		if err != nil {
			return core.Expense{}, mapExpenseError(err, e)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return core.Expense{}, fmt.Errorf("read expense id: %w", err)
		}
		e.ID = id
	} else {
		res, err := q.db.ExecContext(ctx,
			`UPDATE expenses SET amount_cents = ?, description = ?, category_id = ?, expense_date = ?, updated_at = ? WHERE id = ?`,
			amount, e.Description, e.CategoryID, e.Date.String(), now, e.ID)
		if err != nil {
			return core.Expense{}, mapExpenseError(err, e)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.Expense{}, core.NewNotFound("expense", e.ID)
		}
	}
	return q.GetExpense(ctx, e.ID)
}

func (q *Queries) DeleteExpense(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFound("expense", id)
	}
	return nil
}

const categoryColumns = `id, name, color, description, created_at, updated_at`

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c                core.Category
		created, updated string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Color, &c.Description, &created, &updated); err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = parseTimestamp(created)
	c.UpdatedAt = parseTimestamp(updated)
	return c, nil
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.NewNotFound("category", id)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func (q *Queries) GetCategoryByName(ctx context.Context, name string) (core.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.NewNotFound("category", name)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %q: %w", name, err)
	}
	return c, nil
}

func (q *Queries) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check category %d: %w", id, err)
	}
	return true, nil
}

func (q *Queries) CategoryNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE name = ? AND id <> ?`, name, excludeID).Scan(&n); err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) CountExpensesByCategory(ctx context.Context, categoryID int64) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses WHERE category_id = ?`, categoryID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses for category %d: %w", categoryID, err)
	}
	return n, nil
}

func (q *Queries) SaveCategory(ctx context.Context, c core.Category) (core.Category, error) {
	now := q.timestamp()
	if c.ID == 0 {
		res, err := q.db.ExecContext(ctx,
			`INSERT INTO categories (name, color, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			c.Name, c.Color, c.Description, now, now)
		if err != nil {
			return core.Category{}, mapCategoryError(err, c)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return core.Category{}, fmt.Errorf("read category id: %w", err)
		}
		c.ID = id
	} else {
		res, err := q.db.ExecContext(ctx,
			`UPDATE categories SET name = ?, color = ?, description = ?, updated_at = ? WHERE id = ?`,
			c.Name, c.Color, c.Description, now, c.ID)
		if err != nil {
			return core.Category{}, mapCategoryError(err, c)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.Category{}, core.NewNotFound("category", c.ID)
		}
	}
	return q.GetCategory(ctx, c.ID)
}

func (q *Queries) DeleteCategory(ctx context.Context, id int64) error {
	n, err := q.CountExpensesByCategory(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return core.NewConflict("cannot delete category with %d associated expenses", n)
	}
	res, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
			return core.NewConflict("category %d is in use", id)
		}
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFound("category", id)
	}
	return nil
}

const budgetColumns = `id, category_id, month, limit_cents, created_at, updated_at`

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                       core.Budget
		month, created, updated string
		cents                   int64
	)
	if err := row.Scan(&b.ID, &b.CategoryID, &month, &cents, &created, &updated); err != nil {
		return core.Budget{}, err
	}
	ym, err := core.ParseYearMonth(month)
	if err != nil {
		return core.Budget{}, err
	}
	b.Month = ym
	b.Limit = core.FromCents(cents)
	b.CreatedAt = parseTimestamp(created)
	b.UpdatedAt = parseTimestamp(updated)
	return b, nil
}

func (q *Queries) GetBudget(ctx context.Context, categoryID int64, month core.YearMonth) (core.Budget, error) {
	b, err := scanBudget(q.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE category_id = ? AND month = ?`, categoryID, month.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.NewNotFound("budget", fmt.Sprintf("%d/%s", categoryID, month))
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %d/%s: %w", categoryID, month, err)
	}
	return b, nil
}

func (q *Queries) ListBudgets(ctx context.Context, month core.YearMonth) ([]core.Budget, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE month = ? ORDER BY category_id ASC`, month.String())
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := make([]core.Budget, 0)
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *Queries) SaveBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	limit, err := core.CheckedCents("limit", b.Limit)
	if err != nil {
		return core.Budget{}, err
	}
	now := q.timestamp()
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO budgets (category_id, month, limit_cents, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (category_id, month) DO UPDATE SET limit_cents = excluded.limit_cents, updated_at = excluded.updated_at`,
		b.CategoryID, b.Month.String(), limit, now, now)
	if err != nil {
		if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
			return core.Budget{}, core.NewNotFound("category", b.CategoryID)
		}
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return q.GetBudget(ctx, b.CategoryID, b.Month)
}

func (q *Queries) DeleteBudget(ctx context.Context, categoryID int64, month core.YearMonth) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM budgets WHERE category_id = ? AND month = ?`, categoryID, month.String())
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewNotFound("budget", fmt.Sprintf("%d/%s", categoryID, month))
	}
	return nil
}

func isConstraint(err error, code int) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == code
}

func mapExpenseError(err error, e core.Expense) error {
	if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
		return core.NewNotFound("category", e.CategoryID)
	}
	return fmt.Errorf("save expense: %w", err)
}

func mapCategoryError(err error, c core.Category) error {
	if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
		return core.NewConflict("category with name '%s' already exists", c.Name)
	}
	return fmt.Errorf("save category: %w", err)
}
