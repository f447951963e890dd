// Package memory is an in-process ledger store. Transactions work on a copy of
// the state that replaces the live state only on commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tally/internal/core"
	"tally/internal/filter"
	"tally/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

type budgetKey struct {
	categoryID int64
	month      core.YearMonth
}

type state struct {
	categories map[int64]core.Category
	expenses   map[int64]core.Expense
	budgets    map[budgetKey]core.Budget

	nextCategory int64
	nextExpense  int64
	nextBudget   int64
}

func newState() *state {
	return &state{
		categories: make(map[int64]core.Category),
		expenses:   make(map[int64]core.Expense),
		budgets:    make(map[budgetKey]core.Budget),
	}
}

func (s *state) clone() *state {
	c := &state{
		categories:   make(map[int64]core.Category, len(s.categories)),
		expenses:     make(map[int64]core.Expense, len(s.expenses)),
		budgets:      make(map[budgetKey]core.Budget, len(s.budgets)),
		nextCategory: s.nextCategory,
		nextExpense:  s.nextExpense,
		nextBudget:   s.nextBudget,
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.expenses {
		c.expenses[k] = v
	}
	for k, v := range s.budgets {
		c.budgets[k] = v
	}
	return c
}

type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

type Option func(*Store)

// WithClock sets the source of record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithTx runs fn holding the write lock against a copy of the state. The copy
// is kept only if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&view{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read() *view {
	return &view{st: s.st, now: s.now}
}

func (s *Store) FindExpenses(ctx context.Context, p filter.Predicate) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindExpenses(ctx, p)
}

func (s *Store) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetExpense(ctx, id)
}

func (s *Store) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetCategory(ctx, id)
}

func (s *Store) GetCategoryByName(ctx context.Context, name string) (core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetCategoryByName(ctx, name)
}

func (s *Store) CategoryExists(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().CategoryExists(ctx, id)
}

func (s *Store) CategoryNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().CategoryNameExists(ctx, name, excludeID)
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListCategories(ctx)
}

func (s *Store) CountExpensesByCategory(ctx context.Context, categoryID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().CountExpensesByCategory(ctx, categoryID)
}

func (s *Store) GetBudget(ctx context.Context, categoryID int64, month core.YearMonth) (core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetBudget(ctx, categoryID, month)
}

func (s *Store) ListBudgets(ctx context.Context, month core.YearMonth) ([]core.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListBudgets(ctx, month)
}

func (s *Store) SaveExpense(ctx context.Context, e core.Expense) (out core.Expense, err error) {
	err = s.WithTx(ctx, func(tx ledger.Tx) error {
		out, err = tx.SaveExpense(ctx, e)
		return err
	})
	return out, err
}

func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.DeleteExpense(ctx, id)
	})
}

func (s *Store) SaveCategory(ctx context.Context, c core.Category) (out core.Category, err error) {
	err = s.WithTx(ctx, func(tx ledger.Tx) error {
		out, err = tx.SaveCategory(ctx, c)
		return err
	})
	return out, err
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.DeleteCategory(ctx, id)
	})
}

func (s *Store) SaveBudget(ctx context.Context, b core.Budget) (out core.Budget, err error) {
	err = s.WithTx(ctx, func(tx ledger.Tx) error {
		out, err = tx.SaveBudget(ctx, b)
		return err
	})
	return out, err
}

func (s *Store) DeleteBudget(ctx context.Context, categoryID int64, month core.YearMonth) error {
	return s.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.DeleteBudget(ctx, categoryID, month)
	})
}

// view implements ledger.Tx over one state. Locking is the caller's job.
type view struct {
	st  *state
	now func() time.Time
}

func (v *view) withCategoryName(e core.Expense) core.Expense {
	e.CategoryName = v.st.categories[e.CategoryID].Name
	return e
}

func (v *view) FindExpenses(_ context.Context, p filter.Predicate) ([]core.Expense, error) {
	out := make([]core.Expense, 0)
	for _, e := range v.st.expenses {
		e = v.withCategoryName(e)
		if p.Match(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) GetExpense(_ context.Context, id int64) (core.Expense, error) {
	e, ok := v.st.expenses[id]
	if !ok {
		return core.Expense{}, core.NewNotFound("expense", id)
	}
	return v.withCategoryName(e), nil
}

func (v *view) GetCategory(_ context.Context, id int64) (core.Category, error) {
	c, ok := v.st.categories[id]
	if !ok {
		return core.Category{}, core.NewNotFound("category", id)
	}
	return c, nil
}

func (v *view) GetCategoryByName(_ context.Context, name string) (core.Category, error) {
	for _, c := range v.st.categories {
		if c.Name == name {
			return c, nil
		}
	}
	return core.Category{}, core.NewNotFound("category", name)
}

func (v *view) CategoryExists(_ context.Context, id int64) (bool, error) {
	_, ok := v.st.categories[id]
	return ok, nil
}

func (v *view) CategoryNameExists(_ context.Context, name string, excludeID int64) (bool, error) {
	for id, c := range v.st.categories {
		if c.Name == name && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (v *view) ListCategories(_ context.Context) ([]core.Category, error) {
	out := make([]core.Category, 0, len(v.st.categories))
	for _, c := range v.st.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (v *view) CountExpensesByCategory(_ context.Context, categoryID int64) (int, error) {
	n := 0
	for _, e := range v.st.expenses {
		if e.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (v *view) GetBudget(_ context.Context, categoryID int64, month core.YearMonth) (core.Budget, error) {
	b, ok := v.st.budgets[budgetKey{categoryID, month}]
	if !ok {
		return core.Budget{}, core.NewNotFound("budget", fmt.Sprintf("%d/%s", categoryID, month))
	}
	return b, nil
}

func (v *view) ListBudgets(_ context.Context, month core.YearMonth) ([]core.Budget, error) {
	out := make([]core.Budget, 0)
	for k, b := range v.st.budgets {
		if k.month == month {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (v *view) SaveExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if _, err := core.CheckedCents("amount", e.Amount); err != nil {
		return core.Expense{}, err
	}
	if _, ok := v.st.categories[e.CategoryID]; !ok {
		return core.Expense{}, core.NewNotFound("category", e.CategoryID)
	}
	now := v.now().UTC()
	if e.ID == 0 {
		v.st.nextExpense++
		e.ID = v.st.nextExpense
		e.CreatedAt = now
	} else {
		prev, ok := v.st.expenses[e.ID]
		if !ok {
			return core.Expense{}, core.NewNotFound("expense", e.ID)
		}
		e.CreatedAt = prev.CreatedAt
	}
	e.UpdatedAt = now
	e.CategoryName = ""
	v.st.expenses[e.ID] = e
	return v.withCategoryName(e), nil
}

func (v *view) DeleteExpense(_ context.Context, id int64) error {
	if _, ok := v.st.expenses[id]; !ok {
		return core.NewNotFound("expense", id)
	}
	delete(v.st.expenses, id)
	return nil
}

func (v *view) SaveCategory(_ context.Context, c core.Category) (core.Category, error) {
	for id, other := range v.st.categories {
		if other.Name == c.Name && id != c.ID {
			return core.Category{}, core.NewConflict("category with name '%s' already exists", c.Name)
		}
	}
	now := v.now().UTC()
	if c.ID == 0 {
		v.st.nextCategory++
		c.ID = v.st.nextCategory
		c.CreatedAt = now
	} else {
		prev, ok := v.st.categories[c.ID]
		if !ok {
			return core.Category{}, core.NewNotFound("category", c.ID)
		}
		c.CreatedAt = prev.CreatedAt
	}
	c.UpdatedAt = now
	v.st.categories[c.ID] = c
	return c, nil
}

func (v *view) DeleteCategory(ctx context.Context, id int64) error {
	if _, ok := v.st.categories[id]; !ok {
		return core.NewNotFound("category", id)
	}
	n, _ := v.CountExpensesByCategory(ctx, id)
	if n > 0 {
		return core.NewConflict("cannot delete category with %d associated expenses", n)
	}
	for k := range v.st.budgets {
		if k.categoryID == id {
			delete(v.st.budgets, k)
		}
	}
	delete(v.st.categories, id)
	return nil
}

func (v *view) SaveBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if _, err := core.CheckedCents("limit", b.Limit); err != nil {
		return core.Budget{}, err
	}
	if _, ok := v.st.categories[b.CategoryID]; !ok {
		return core.Budget{}, core.NewNotFound("category", b.CategoryID)
	}
	now := v.now().UTC()
	key := budgetKey{b.CategoryID, b.Month}
	if prev, ok := v.st.budgets[key]; ok {
		b.ID = prev.ID
		b.CreatedAt = prev.CreatedAt
	} else {
		v.st.nextBudget++
		b.ID = v.st.nextBudget
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	v.st.budgets[key] = b
	return b, nil
}

func (v *view) DeleteBudget(_ context.Context, categoryID int64, month core.YearMonth) error {
	key := budgetKey{categoryID, month}
	if _, ok := v.st.budgets[key]; !ok {
		return core.NewNotFound("budget", fmt.Sprintf("%d/%s", categoryID, month))
	}
	delete(v.st.budgets, key)
	return nil
}
