package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/budget"
	"tally/internal/core"
	"tally/internal/filter"
)

func TestSummaryIsCachedUntilWrite(t *testing.T) {
	f := newFixture(t, budget.DefaultPolicy())
	ctx := context.Background()
	food := f.category(t, "Food")
	f.expense(t, food.ID, "10", "Groceries", core.NewDate(2024, 5, 2))

	s1, err := f.reports.Summary(ctx, filter.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 1, s1.Count)
	assert.Equal(t, 1, f.reports.Cache().Size())

	// a write through the store alone bypasses invalidation
	_, err = f.store.SaveExpense(ctx, core.Expense{Amount: dec("5"), Description: "Direct", CategoryID: food.ID, Date: core.NewDate(2024, 5, 3)})
	require.NoError(t, err)
	cachedSummary, err := f.reports.Summary(ctx, filter.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 1, cachedSummary.Count)

	// a service write drops the cache
	f.expense(t, food.ID, "6", "Fruit", core.NewDate(2024, 5, 4))
	assert.Equal(t, 0, f.reports.Cache().Size())
	s2, err := f.reports.Summary(ctx, filter.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 3, s2.Count)
	assert.Equal(t, "21.00", s2.Total.StringFixed(2))
	assert.Equal(t, "7.00", s2.Average.StringFixed(2))
}

func TestConcurrentSummaries(t *testing.T) {
	f := newFixture(t, budget.DefaultPolicy())
	food := f.category(t, "Food")
	f.expense(t, food.ID, "10", "Groceries", core.NewDate(2024, 5, 2))

	var wg sync.WaitGroup
	results := make([]core.Summary, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.reports.Summary(context.Background(), filter.Criteria{})
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()
	for _, s := range results {
		assert.Equal(t, 1, s.Count)
	}
}

func TestReports(t *testing.T) {
	f := newFixture(t, budget.DefaultPolicy())
	ctx := context.Background()
	food := f.category(t, "Food")
	travel := f.category(t, "Travel")
	f.expense(t, food.ID, "100", "Groceries", core.NewDate(2024, 4, 10))
	f.expense(t, travel.ID, "40", "Bus pass", core.NewDate(2024, 5, 1))
	f.expense(t, food.ID, "10", "Pizza", core.NewDate(2024, 5, 14))
	f.expense(t, food.ID, "20", "Sushi", core.NewDate(2024, 5, 14))

	t.Run("monthly", func(t *testing.T) {
		got, err := f.reports.Monthly(ctx, filter.Criteria{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, time.April, got[0].Month.Month)
		assert.Equal(t, "70.00", got[1].Total.StringFixed(2))
	})

	t.Run("categories", func(t *testing.T) {
		got, err := f.reports.Categories(ctx, filter.Criteria{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Food", got[0].Category)
		assert.Equal(t, 3, got[0].Count)
	})

	t.Run("top", func(t *testing.T) {
		got, err := f.reports.Top(ctx, filter.Criteria{}, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Groceries", got[0].Description)
		assert.Equal(t, "Bus pass", got[1].Description)
	})

	t.Run("above average", func(t *testing.T) {
		got, err := f.reports.AboveAverage(ctx, filter.Criteria{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Groceries", got[0].Description)
	})

	t.Run("daily", func(t *testing.T) {
		got, err := f.reports.Daily(ctx, 30)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "2024-05-01", got[0].Date.String())
		assert.Equal(t, "30.00", got[1].Total.StringFixed(2))

		_, err = f.reports.Daily(ctx, 0)
		require.ErrorIs(t, err, core.ErrInvalidInput)

		got, err = f.reports.Daily(ctx, MaxTrendDays)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "2024-04-10", got[0].Date.String())

		_, err = f.reports.Daily(ctx, MaxTrendDays+1)
		require.ErrorIs(t, err, core.ErrInvalidInput)
		_, err = f.reports.Daily(ctx, 2_000_000_000)
		require.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("year over year bounds", func(t *testing.T) {
		_, err := f.reports.YearOverYear(ctx, 2023, 2024)
		require.NoError(t, err)
		_, err = f.reports.YearOverYear(ctx, 0, 2024)
		require.ErrorIs(t, err, core.ErrInvalidInput)
		_, err = f.reports.YearOverYear(ctx, 2024, 10000)
		require.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("category stats", func(t *testing.T) {
		from := core.NewDate(2024, 5, 1)
		got, err := f.reports.CategoryStats(ctx, food.ID, &from, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Count)
		assert.Equal(t, "20.00", got.Max.StringFixed(2))
		assert.Equal(t, "10.00", got.Min.StringFixed(2))
		assert.Equal(t, "15.00", got.Average.StringFixed(2))

		_, err = f.reports.CategoryStats(ctx, 99, nil, nil)
		require.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("growth", func(t *testing.T) {
		got, err := f.reports.Growth(ctx, core.NewYearMonth(2024, time.May))
		require.NoError(t, err)
		assert.Equal(t, "-30.00", got.Percent.StringFixed(2))
	})

	t.Run("overview", func(t *testing.T) {
		got, err := f.reports.Overview(ctx, core.NewYearMonth(2024, time.May))
		require.NoError(t, err)
		assert.Equal(t, 3, got.Summary.Count)
		assert.Len(t, got.Categories, 2)
		assert.Len(t, got.Top, 3)
	})

	t.Run("invalid range", func(t *testing.T) {
		start, end := core.NewDate(2024, 5, 2), core.NewDate(2024, 5, 1)
		_, err := f.reports.Summary(ctx, filter.Criteria{StartDate: &start, EndDate: &end})
		require.ErrorIs(t, err, core.ErrInvalidRange)
	})
}
