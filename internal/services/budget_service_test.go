package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/amqp"
	"tally/internal/budget"
	"tally/internal/core"
)

func TestSetBudget(t *testing.T) {
	f := newFixture(t, budget.DefaultPolicy())
	ctx := context.Background()
	food := f.category(t, "Food")
	may := core.NewYearMonth(2024, time.May)

	b, err := f.budgets.Set(ctx, food.ID, may, dec("200"))
	require.NoError(t, err)
	assert.True(t, dec("200").Equal(b.Limit))
	assert.Equal(t, amqp.BudgetSet, f.pub.types()[len(f.pub.types())-1])

	// upsert replaces the limit of the same pair
	b2, err := f.budgets.Set(ctx, food.ID, may, dec("250"))
	require.NoError(t, err)
	assert.Equal(t, b.ID, b2.ID)
	assert.True(t, dec("250").Equal(b2.Limit))

	_, err = f.budgets.Set(ctx, 99, may, dec("10"))
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.budgets.Set(ctx, food.ID, may, dec("-1"))
	require.ErrorIs(t, err, core.ErrInvalidInput)

	require.NoError(t, f.budgets.Delete(ctx, food.ID, may))
	_, err = f.budgets.IsExceeded(ctx, food.ID, may)
	require.ErrorIs(t, err, core.ErrBudgetNotFound)
}

func TestFoodBudgetThroughServices(t *testing.T) {
	f := newFixture(t, budget.DefaultPolicy())
	ctx := context.Background()
	food := f.category(t, "Food")
	may := core.NewYearMonth(2024, time.May)
	_, err := f.budgets.Set(ctx, food.ID, may, dec("200"))
	require.NoError(t, err)

	f.expense(t, food.ID, "150", "Weekly shop", core.NewDate(2024, 5, 3))
	f.expense(t, food.ID, "49.99", "Farmers market", core.NewDate(2024, 5, 10))

	remaining, err := f.budgets.Remaining(ctx, food.ID, may)
	require.NoError(t, err)
	assert.Equal(t, "0.01", remaining.StringFixed(2))

	exceeded, err := f.budgets.IsExceeded(ctx, food.ID, may)
	require.NoError(t, err)
	assert.False(t, exceeded)

	_, err = f.expenses.Create(ctx, core.Expense{Amount: dec("0.01"), Description: "Mint", CategoryID: food.ID, Date: core.NewDate(2024, 5, 11)})
	require.ErrorIs(t, err, core.ErrBudgetExceeded)

	status, err := f.budgets.MonthlyStatus(ctx, may)
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.Equal(t, int64(0), status[0].CategoryID)
	assert.Equal(t, "Food", status[1].CategoryName)
	assert.Equal(t, "199.99", status[1].Spent.StringFixed(2))

	_, err = f.budgets.MonthlyStatus(ctx, core.YearMonth{Year: 2024, Month: 13})
	require.ErrorIs(t, err, core.ErrInvalidInput)
}
