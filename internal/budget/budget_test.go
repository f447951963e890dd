package budget

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
	"tally/internal/ledger/memory"
)

var may2024 = core.NewYearMonth(2024, time.May)

func setup(t *testing.T) (*memory.Store, core.Category) {
	t.Helper()
	s := memory.New()
	c, err := s.SaveCategory(context.Background(), core.Category{Name: "Food", Color: core.DefaultCategoryColor})
	require.NoError(t, err)
	return s, c
}

func seed(t *testing.T, s *memory.Store, catID int64, amount string, d core.Date) core.Expense {
	t.Helper()
	e, err := s.SaveExpense(context.Background(), core.Expense{
		Amount:      decimal.RequireFromString(amount),
		Description: "seeded",
		CategoryID:  catID,
		Date:        d,
	})
	require.NoError(t, err)
	return e
}

func candidate(catID int64, amount string, d core.Date) core.Expense {
	return core.Expense{
		Amount:      decimal.RequireFromString(amount),
		Description: "candidate",
		CategoryID:  catID,
		Date:        d,
	}
}

func setBudget(t *testing.T, s *memory.Store, catID int64, month core.YearMonth, limit string) {
	t.Helper()
	_, err := s.SaveBudget(context.Background(), core.Budget{CategoryID: catID, Month: month, Limit: decimal.RequireFromString(limit)})
	require.NoError(t, err)
}

func countAll(t *testing.T, s *memory.Store) int {
	t.Helper()
	all, err := s.FindExpenses(context.Background(), nil)
	require.NoError(t, err)
	return len(all)
}

func noGlobal() *Enforcer {
	return NewEnforcer(Policy{}, nil)
}

func TestCategoryLimitBoundary(t *testing.T) {
	ctx := context.Background()
	s, food := setup(t)
	setBudget(t, s, food.ID, may2024, "100")
	enf := noGlobal()

	_, err := enf.Save(ctx, s, candidate(food.ID, "100", core.NewDate(2024, 5, 2)))
	assert.ErrorIs(t, err, core.ErrBudgetExceeded, "reaching the limit exactly is rejected")
	assert.Equal(t, 0, countAll(t, s))

	saved, err := enf.Save(ctx, s, candidate(food.ID, "99.99", core.NewDate(2024, 5, 2)))
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.Equal(t, 1, countAll(t, s))
}

func TestGlobalCapRejectionLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	s, food := setup(t)
	bills, err := s.SaveCategory(ctx, core.Category{Name: "Bills", Color: core.DefaultCategoryColor})
	require.NoError(t, err)
	seed(t, s, food.ID, "2999", core.NewDate(2024, 5, 1))
	seed(t, s, bills.ID, "2000", core.NewDate(2024, 5, 3))
	enf := NewEnforcer(DefaultPolicy(), nil)

	before := countAll(t, s)
	_, err = enf.Save(ctx, s, candidate(bills.ID, "2", core.NewDate(2024, 5, 20)))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrBudgetExceeded)
	assert.Equal(t, before, countAll(t, s))

	_, err = enf.Save(ctx, s, candidate(bills.ID, "0.99", core.NewDate(2024, 5, 20)))
	require.NoError(t, err)
	assert.Equal(t, before+1, countAll(t, s))

	// a different month starts from zero
	_, err = enf.Save(ctx, s, candidate(bills.ID, "2", core.NewDate(2024, 6, 1)))
	assert.NoError(t, err)
}

func TestFoodBudgetScenario(t *testing.T) {
	ctx := context.Background()
	s, food := setup(t)
	setBudget(t, s, food.ID, may2024, "200")
	seed(t, s, food.ID, "150", core.NewDate(2024, 5, 2))
	// April spending does not count toward May
	seed(t, s, food.ID, "500", core.NewDate(2024, 4, 30))
	enf := NewEnforcer(DefaultPolicy(), nil)

	_, err := enf.Save(ctx, s, candidate(food.ID, "49.99", core.NewDate(2024, 5, 10)))
	require.NoError(t, err)

	spent, err := Spent(ctx, s, food.ID, may2024)
	require.NoError(t, err)
	assert.True(t, spent.Equal(decimal.RequireFromString("199.99")), "spent %s", spent)

	rem, err := Remaining(ctx, s, food.ID, may2024)
	require.NoError(t, err)
	assert.True(t, rem.Equal(decimal.RequireFromString("0.01")), "remaining %s", rem)

	exceeded, err := IsExceeded(ctx, s, food.ID, may2024)
	require.NoError(t, err)
	assert.False(t, exceeded)

	_, err = enf.Save(ctx, s, candidate(food.ID, "0.01", core.NewDate(2024, 5, 11)))
	assert.ErrorIs(t, err, core.ErrBudgetExceeded)
}

func TestUpdateExcludesPreviousAmount(t *testing.T) {
	ctx := context.Background()
	s, food := setup(t)
	setBudget(t, s, food.ID, may2024, "200")
	existing := seed(t, s, food.ID, "150", core.NewDate(2024, 5, 2))
	enf := noGlobal()

	existing.Amount = decimal.RequireFromString("199")
	updated, err := enf.Save(ctx, s, existing)
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(199)))

	existing.Amount = decimal.RequireFromString("200")
	_, err = enf.Save(ctx, s, existing)
	assert.ErrorIs(t, err, core.ErrBudgetExceeded)

	got, err := s.GetExpense(ctx, existing.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(199)), "rejected update must not be applied")
}

func TestZeroBudgetRejectsEverything(t *testing.T) {
	s, food := setup(t)
	setBudget(t, s, food.ID, may2024, "0")
	_, err := noGlobal().Save(context.Background(), s, candidate(food.ID, "0.01", core.NewDate(2024, 5, 1)))
	assert.ErrorIs(t, err, core.ErrBudgetExceeded)
}

func TestQueriesErrors(t *testing.T) {
	ctx := context.Background()
	s, food := setup(t)

	_, err := IsExceeded(ctx, s, 999, may2024)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = IsExceeded(ctx, s, food.ID, may2024)
	assert.ErrorIs(t, err, core.ErrBudgetNotFound)
	_, err = Remaining(ctx, s, food.ID, may2024)
	assert.ErrorIs(t, err, core.ErrBudgetNotFound)
}

func TestExceededAndRemaining(t *testing.T) {
	ctx := context.Background()
	s, food := setup(t)
	setBudget(t, s, food.ID, may2024, "100")
	seed(t, s, food.ID, "100", core.NewDate(2024, 5, 1))

	exceeded, err := IsExceeded(ctx, s, food.ID, may2024)
	require.NoError(t, err)
	assert.False(t, exceeded, "spent equal to the limit is not exceeded")
	rem, err := Remaining(ctx, s, food.ID, may2024)
	require.NoError(t, err)
	assert.True(t, rem.IsZero())

	// written directly, bypassing enforcement
	seed(t, s, food.ID, "0.50", core.NewDate(2024, 5, 2))
	exceeded, err = IsExceeded(ctx, s, food.ID, may2024)
	require.NoError(t, err)
	assert.True(t, exceeded)
	_, err = Remaining(ctx, s, food.ID, may2024)
	assert.ErrorIs(t, err, core.ErrBudgetExceeded)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	s, food := setup(t)
	bills, err := s.SaveCategory(ctx, core.Category{Name: "Bills", Color: core.DefaultCategoryColor})
	require.NoError(t, err)
	setBudget(t, s, food.ID, may2024, "200")
	setBudget(t, s, bills.ID, may2024, "50")
	seed(t, s, food.ID, "150", core.NewDate(2024, 5, 2))
	seed(t, s, bills.ID, "60", core.NewDate(2024, 5, 3))

	rows, err := NewEnforcer(DefaultPolicy(), nil).Status(ctx, s, may2024)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	global := rows[0]
	assert.Equal(t, int64(0), global.CategoryID)
	assert.True(t, global.Spent.Equal(decimal.NewFromInt(210)))
	assert.True(t, global.Remaining.Equal(decimal.NewFromInt(4790)))

	assert.Equal(t, "Food", rows[1].CategoryName)
	assert.True(t, rows[1].Remaining.Equal(decimal.NewFromInt(50)))
	assert.False(t, rows[1].Exceeded)

	assert.Equal(t, "Bills", rows[2].CategoryName)
	assert.True(t, rows[2].Exceeded)
	assert.True(t, rows[2].Remaining.IsZero())
}
