// Package ledgertest holds behaviour tests shared by every ledger.Store
// implementation.
package ledgertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/filter"
	"tally/internal/ledger"
)

// Run exercises s. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	t.Run("CategoryCRUD", func(t *testing.T) { testCategoryCRUD(t, newStore(t)) })
	t.Run("ExpenseCRUD", func(t *testing.T) { testExpenseCRUD(t, newStore(t)) })
	t.Run("FindExpensesOrderAndFilter", func(t *testing.T) { testFind(t, newStore(t)) })
	t.Run("BudgetUpsert", func(t *testing.T) { testBudgetUpsert(t, newStore(t)) })
	t.Run("UnstorableMoneyRefused", func(t *testing.T) { testUnstorableMoney(t, newStore(t)) })
	t.Run("OutOfRangeAmountBounds", func(t *testing.T) { testOutOfRangeBounds(t, newStore(t)) })
	t.Run("DeleteCategoryInUse", func(t *testing.T) { testDeleteCategoryInUse(t, newStore(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollbackOnError(t, newStore(t)) })
	t.Run("RollbackOnPanic", func(t *testing.T) { testRollbackOnPanic(t, newStore(t)) })
	t.Run("TxSeesOwnWrites", func(t *testing.T) { testTxSeesOwnWrites(t, newStore(t)) })
}

func mustCategory(t *testing.T, s ledger.Store, name string) core.Category {
	t.Helper()
	c, err := s.SaveCategory(context.Background(), core.Category{Name: name, Color: core.DefaultCategoryColor})
	if err != nil {
		t.Fatalf("save category %s: %v", name, err)
	}
	return c
}

func mustExpense(t *testing.T, s ledger.Store, catID int64, amount string, d core.Date, descr string) core.Expense {
	t.Helper()
	e, err := s.SaveExpense(context.Background(), core.Expense{
		Amount:      decimal.RequireFromString(amount),
		Description: descr,
		CategoryID:  catID,
		Date:        d,
	})
	if err != nil {
		t.Fatalf("save expense %s: %v", descr, err)
	}
	return e
}

func count(t *testing.T, s ledger.Reader) int {
	t.Helper()
	all, err := s.FindExpenses(context.Background(), nil)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	return len(all)
}

func testCategoryCRUD(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	food := mustCategory(t, s, "Food")
	if food.ID == 0 || food.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps, got %+v", food)
	}
	mustCategory(t, s, "Bills")

	if _, err := s.SaveCategory(ctx, core.Category{Name: "Food", Color: "#000000"}); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict on duplicate name, got %v", err)
	}

	got, err := s.GetCategoryByName(ctx, "Food")
	if err != nil || got.ID != food.ID {
		t.Fatalf("get by name: %+v %v", got, err)
	}
	if ok, _ := s.CategoryNameExists(ctx, "Food", food.ID); ok {
		t.Fatalf("name check must ignore the excluded id")
	}
	if ok, _ := s.CategoryNameExists(ctx, "Food", 0); !ok {
		t.Fatalf("expected Food to exist")
	}

	food.Color = "#FF5733"
	food.Description = "Groceries and meals"
	updated, err := s.SaveCategory(ctx, food)
	if err != nil || updated.Color != "#FF5733" || !updated.CreatedAt.Equal(food.CreatedAt) {
		t.Fatalf("update: %+v %v", updated, err)
	}

	list, err := s.ListCategories(ctx)
	if err != nil || len(list) != 2 || list[0].Name != "Bills" || list[1].Name != "Food" {
		t.Fatalf("list ordered by name: %+v %v", list, err)
	}

	if err := s.DeleteCategory(ctx, food.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetCategory(ctx, food.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if ok, _ := s.CategoryExists(ctx, food.ID); ok {
		t.Fatalf("deleted category still exists")
	}
	if err := s.DeleteCategory(ctx, food.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func testExpenseCRUD(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	food := mustCategory(t, s, "Food")

	if _, err := s.SaveExpense(ctx, core.Expense{Amount: decimal.NewFromInt(1), Description: "orphan", CategoryID: 999, Date: core.NewDate(2024, 1, 1)}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for missing category, got %v", err)
	}

	e := mustExpense(t, s, food.ID, "12.34", core.NewDate(2024, 1, 5), "Lunch")
	if e.ID == 0 || e.CategoryName != "Food" || e.CreatedAt.IsZero() {
		t.Fatalf("unexpected saved expense %+v", e)
	}

	got, err := s.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Amount.Equal(decimal.RequireFromString("12.34")) || got.Date.String() != "2024-01-05" || got.CategoryName != "Food" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	got.Amount = decimal.RequireFromString("15")
	updated, err := s.SaveExpense(ctx, got)
	if err != nil || !updated.Amount.Equal(decimal.NewFromInt(15)) || !updated.CreatedAt.Equal(e.CreatedAt) {
		t.Fatalf("update: %+v %v", updated, err)
	}

	if n, _ := s.CountExpensesByCategory(ctx, food.ID); n != 1 {
		t.Fatalf("expected 1 expense in category, got %d", n)
	}

	if err := s.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetExpense(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.DeleteExpense(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	missing := core.Expense{ID: 4242, Amount: decimal.NewFromInt(1), Description: "ghost", CategoryID: food.ID, Date: core.NewDate(2024, 1, 1)}
	if _, err := s.SaveExpense(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found updating missing expense, got %v", err)
	}
}

func testFind(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	food := mustCategory(t, s, "Food")
	travel := mustCategory(t, s, "Travel")

	// inserted out of date order
	e3 := mustExpense(t, s, food.ID, "55.20", core.NewDate(2024, 1, 21), "Weekly groceries")
	e1 := mustExpense(t, s, food.ID, "5.00", core.NewDate(2024, 1, 3), "Coffee beans")
	e2 := mustExpense(t, s, travel.ID, "10.00", core.NewDate(2024, 1, 10), "Bus pass")
	e4 := mustExpense(t, s, food.ID, "100.00", core.NewDate(2024, 1, 31), "Dinner out")
	e5 := mustExpense(t, s, food.ID, "80.00", core.NewDate(2024, 2, 1), "Groceries")
	e6 := mustExpense(t, s, travel.ID, "10.00", core.NewDate(2024, 1, 10), "Bus 100% refill")

	all, err := s.FindExpenses(ctx, nil)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	want := []int64{e1.ID, e2.ID, e6.ID, e3.ID, e4.ID, e5.ID}
	assertIDs(t, "all", all, want)

	lo, hi := decimal.NewFromInt(10), decimal.NewFromInt(100)
	start, end := core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31)
	p, err := filter.Criteria{MinAmount: &lo, MaxAmount: &hi, StartDate: &start, EndDate: &end}.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got, err := s.FindExpenses(ctx, p)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	assertIDs(t, "amount+date", got, []int64{e2.ID, e6.ID, e3.ID, e4.ID})

	catID := food.ID
	p, _ = filter.Criteria{CategoryID: &catID, Keyword: "GROCER"}.Build()
	got, _ = s.FindExpenses(ctx, p)
	assertIDs(t, "category+keyword", got, []int64{e3.ID, e5.ID})

	got, _ = s.FindExpenses(ctx, filter.Search("travel"))
	assertIDs(t, "search category name", got, []int64{e2.ID, e6.ID})

	// LIKE wildcards are literal
	got, _ = s.FindExpenses(ctx, filter.Search("100%"))
	assertIDs(t, "search literal percent", got, []int64{e6.ID})
	got, _ = s.FindExpenses(ctx, filter.Search("_"))
	assertIDs(t, "search literal underscore", got, []int64{})

	got, _ = s.FindExpenses(ctx, filter.Month(core.NewYearMonth(2024, time.February), nil))
	assertIDs(t, "month", got, []int64{e5.ID})
}

func testOutOfRangeBounds(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	food := mustCategory(t, s, "Food")
	e := mustExpense(t, s, food.ID, "12.50", core.NewDate(2024, 3, 1), "Lunch")

	huge := decimal.RequireFromString("184467440737095516.16")
	negHuge := huge.Neg()
	cases := []struct {
		name string
		c    filter.Criteria
		want []int64
	}{
		{"huge minimum", filter.Criteria{MinAmount: &huge}, []int64{}},
		{"huge maximum", filter.Criteria{MaxAmount: &huge}, []int64{e.ID}},
		{"negative huge minimum", filter.Criteria{MinAmount: &negHuge}, []int64{e.ID}},
		{"negative huge maximum", filter.Criteria{MaxAmount: &negHuge}, []int64{}},
	}
	for _, tc := range cases {
		p, err := tc.c.Build()
		if err != nil {
			t.Fatalf("%s: build: %v", tc.name, err)
		}
		got, err := s.FindExpenses(ctx, p)
		if err != nil {
			t.Fatalf("%s: find: %v", tc.name, err)
		}
		assertIDs(t, tc.name, got, tc.want)
	}
}

func assertIDs(t *testing.T, name string, got []core.Expense, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %d results, got %d (%+v)", name, len(want), len(got), got)
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("%s: position %d expected id %d, got %d", name, i, want[i], got[i].ID)
		}
	}
}

func testUnstorableMoney(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	food := mustCategory(t, s, "Food")
	may := core.NewYearMonth(2024, time.May)

	huge := decimal.RequireFromString("184467440737095517.00")
	if _, err := s.SaveBudget(ctx, core.Budget{CategoryID: food.ID, Month: may, Limit: huge}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected invalid input for huge limit, got %v", err)
	}
	if _, err := s.GetBudget(ctx, food.ID, may); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("refused limit must not be stored, got %v", err)
	}
	if _, err := s.SaveBudget(ctx, core.Budget{CategoryID: food.ID, Month: may, Limit: decimal.RequireFromString("1.005")}); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected invalid input for fractional cents, got %v", err)
	}
	_, err := s.SaveExpense(ctx, core.Expense{Amount: huge, Description: "Yacht", CategoryID: food.ID, Date: core.NewDate(2024, 5, 2)})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected invalid input for huge amount, got %v", err)
	}
	if all, _ := s.FindExpenses(ctx, nil); len(all) != 0 {
		t.Fatalf("refused expense must not be stored, got %+v", all)
	}
}

func testBudgetUpsert(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	food := mustCategory(t, s, "Food")
	may := core.NewYearMonth(2024, time.May)

	if _, err := s.GetBudget(ctx, food.ID, may); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	b1, err := s.SaveBudget(ctx, core.Budget{CategoryID: food.ID, Month: may, Limit: decimal.NewFromInt(200)})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	b2, err := s.SaveBudget(ctx, core.Budget{CategoryID: food.ID, Month: may, Limit: decimal.RequireFromString("250.50")})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if b1.ID != b2.ID {
		t.Fatalf("upsert must keep id: %d != %d", b1.ID, b2.ID)
	}
	got, err := s.GetBudget(ctx, food.ID, may)
	if err != nil || !got.Limit.Equal(decimal.RequireFromString("250.5")) {
		t.Fatalf("get: %+v %v", got, err)
	}
	if _, err := s.SaveBudget(ctx, core.Budget{CategoryID: food.ID, Month: may.Prev(), Limit: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("save april: %v", err)
	}
	list, _ := s.ListBudgets(ctx, may)
	if len(list) != 1 {
		t.Fatalf("expected one May budget, got %+v", list)
	}
	if _, err := s.SaveBudget(ctx, core.Budget{CategoryID: 999, Month: may, Limit: decimal.NewFromInt(1)}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for missing category, got %v", err)
	}
	if err := s.DeleteBudget(ctx, food.ID, may); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteBudget(ctx, food.ID, may); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testDeleteCategoryInUse(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	food := mustCategory(t, s, "Food")
	mustExpense(t, s, food.ID, "3", core.NewDate(2024, 1, 1), "Snack")
	if err := s.DeleteCategory(ctx, food.ID); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if ok, _ := s.CategoryExists(ctx, food.ID); !ok {
		t.Fatalf("category must survive a rejected delete")
	}
}

var errAbort = errors.New("abort")

func testRollbackOnError(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	food := mustCategory(t, s, "Food")
	mustExpense(t, s, food.ID, "1", core.NewDate(2024, 1, 1), "Before")
	before := count(t, s)

	err := s.WithTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.SaveExpense(ctx, core.Expense{Amount: decimal.NewFromInt(2), Description: "Inside", CategoryID: food.ID, Date: core.NewDate(2024, 1, 2)}); err != nil {
			return err
		}
		if _, err := tx.SaveCategory(ctx, core.Category{Name: "Temp", Color: core.DefaultCategoryColor}); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}
	if after := count(t, s); after != before {
		t.Fatalf("expense count changed after rollback: %d -> %d", before, after)
	}
	if ok, _ := s.CategoryNameExists(ctx, "Temp", 0); ok {
		t.Fatalf("category written in aborted tx is visible")
	}
}

func testRollbackOnPanic(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	food := mustCategory(t, s, "Food")
	before := count(t, s)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = s.WithTx(ctx, func(tx ledger.Tx) error {
			if _, err := tx.SaveExpense(ctx, core.Expense{Amount: decimal.NewFromInt(2), Description: "Inside", CategoryID: food.ID, Date: core.NewDate(2024, 1, 2)}); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	if after := count(t, s); after != before {
		t.Fatalf("expense count changed after panic: %d -> %d", before, after)
	}
	// the store is still usable
	mustExpense(t, s, food.ID, "1", core.NewDate(2024, 1, 3), "After")
}

func testTxSeesOwnWrites(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	food := mustCategory(t, s, "Food")
	err := s.WithTx(ctx, func(tx ledger.Tx) error {
		e, err := tx.SaveExpense(ctx, core.Expense{Amount: decimal.NewFromInt(7), Description: "Inside", CategoryID: food.ID, Date: core.NewDate(2024, 1, 2)})
		if err != nil {
			return err
		}
		got, err := tx.GetExpense(ctx, e.ID)
		if err != nil {
			return err
		}
		if !got.Amount.Equal(decimal.NewFromInt(7)) {
			t.Errorf("unexpected amount %s", got.Amount)
		}
		if n := count(t, tx); n != 1 {
			t.Errorf("expected tx to see its write, got %d", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if n := count(t, s); n != 1 {
		t.Fatalf("expected committed write, got %d", n)
	}
}
