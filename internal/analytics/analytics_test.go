package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
)

func exp(id int64, amount, category string, y, m, d int) core.Expense {
	return core.Expense{
		ID:           id,
		Amount:       decimal.RequireFromString(amount),
		Description:  "item",
		CategoryName: category,
		Date:         core.NewDate(y, m, d),
	}
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestTotalAndAverage(t *testing.T) {
	assertDec(t, "0", Total(nil))
	assertDec(t, "0", Average(nil))

	list := []core.Expense{
		exp(1, "10", "Food", 2024, 1, 1),
		exp(2, "20", "Food", 2024, 1, 2),
		exp(3, "30.01", "Food", 2024, 1, 3),
	}
	assertDec(t, "60.01", Total(list))
	assertDec(t, "20.00", Average(list))

	halves := []core.Expense{exp(1, "0.01", "A", 2024, 1, 1), exp(2, "0.02", "A", 2024, 1, 1)}
	assertDec(t, "0.02", Average(halves))

	s := Summarize(list)
	assert.Equal(t, 3, s.Count)
	assertDec(t, "60.01", s.Total)
	assertDec(t, "20", s.Average)
}

func TestGroupByMonthAscending(t *testing.T) {
	list := []core.Expense{
		exp(1, "5", "Food", 2024, 3, 10),
		exp(2, "7", "Food", 2023, 12, 31),
		exp(3, "1.50", "Food", 2024, 1, 5),
		exp(4, "2.50", "Rent", 2024, 3, 1),
	}
	got := GroupByMonth(list)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.Equal(t, -1, got[i-1].Month.Compare(got[i].Month))
	}
	assert.Equal(t, core.NewYearMonth(2023, 12), got[0].Month)
	assertDec(t, "7", got[0].Total)
	assertDec(t, "1.5", got[1].Total)
	assertDec(t, "7.5", got[2].Total)
	assert.Empty(t, GroupByMonth(nil))
}

func TestGroupByCategory(t *testing.T) {
	list := []core.Expense{
		exp(1, "10", "Food", 2024, 1, 1),
		exp(2, "5", "Food", 2024, 1, 2),
		exp(3, "100", "Rent", 2024, 1, 3),
	}
	got := GroupByCategory(list)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got["Food"].Count)
	assertDec(t, "15", got["Food"].Total)
	assertDec(t, "7.50", got["Food"].Average)
	assertDec(t, "100", got["Rent"].Average)
}

func TestTopN(t *testing.T) {
	list := []core.Expense{
		exp(1, "10", "A", 2024, 1, 1),
		exp(2, "50", "A", 2024, 1, 2),
		exp(3, "10", "A", 2024, 1, 3),
		exp(4, "50", "A", 2024, 1, 4),
		exp(5, "1", "A", 2024, 1, 5),
	}
	ids := func(l []core.Expense) []int64 {
		out := []int64{}
		for _, e := range l {
			out = append(out, e.ID)
		}
		return out
	}
	assert.Equal(t, []int64{2, 4, 1}, ids(TopN(list, 3)))
	assert.Equal(t, []int64{2, 4, 1, 3, 5}, ids(TopN(list, 10)))
	assert.Empty(t, TopN(list, 0))
	assert.Empty(t, TopN(list, -1))
	assert.Empty(t, TopN(nil, 3))
	assert.Equal(t, int64(1), list[0].ID, "input must not be reordered")
}

func TestAboveAverage(t *testing.T) {
	list := []core.Expense{
		exp(1, "10", "A", 2024, 1, 1),
		exp(2, "20", "A", 2024, 1, 2),
		exp(3, "30", "A", 2024, 1, 3),
	}
	got := AboveAverage(list)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)

	// equal to the average is not above it
	flat := []core.Expense{exp(1, "5", "A", 2024, 1, 1), exp(2, "5", "A", 2024, 1, 2)}
	assert.Empty(t, AboveAverage(flat))
	assert.Empty(t, AboveAverage(nil))

	// unrounded average 0.0033.. keeps 0.01 above it
	tiny := []core.Expense{exp(1, "0.01", "A", 2024, 1, 1), exp(2, "0", "A", 2024, 1, 1), exp(3, "0", "A", 2024, 1, 1)}
	assert.Len(t, AboveAverage(tiny), 1)
}

func TestCategoryStatistics(t *testing.T) {
	empty := CategoryStatistics(nil)
	assert.Equal(t, 0, empty.Count)
	for _, d := range []decimal.Decimal{empty.Total, empty.Average, empty.Max, empty.Min} {
		assertDec(t, "0", d)
	}

	st := CategoryStatistics([]core.Expense{
		exp(1, "12.50", "A", 2024, 1, 1),
		exp(2, "3.25", "A", 2024, 1, 2),
		exp(3, "40", "A", 2024, 1, 3),
	})
	assert.Equal(t, 3, st.Count)
	assertDec(t, "55.75", st.Total)
	assertDec(t, "18.58", st.Average)
	assertDec(t, "40", st.Max)
	assertDec(t, "3.25", st.Min)
}

func TestCategoryBreakdownOrderedByTotal(t *testing.T) {
	got := CategoryBreakdown([]core.Expense{
		exp(1, "10", "Food", 2024, 1, 1),
		exp(2, "300", "Rent", 2024, 1, 1),
		exp(3, "20", "Fun", 2024, 1, 1),
		exp(4, "10", "Food", 2024, 1, 2),
	})
	require.Len(t, got, 3)
	assert.Equal(t, "Rent", got[0].Category)
	// Food and Fun tie on 20, ordered by name
	assert.Equal(t, "Food", got[1].Category)
	assert.Equal(t, 2, got[1].Count)
	assert.Equal(t, "Fun", got[2].Category)
}

func TestDailyTrend(t *testing.T) {
	list := []core.Expense{
		exp(1, "5", "A", 2024, 5, 3),
		exp(2, "2", "A", 2024, 5, 1),
		exp(3, "3", "A", 2024, 5, 3),
		exp(4, "9", "A", 2024, 4, 1),
	}
	got := DailyTrend(list, core.NewDate(2024, 5, 1), core.NewDate(2024, 5, 31))
	require.Len(t, got, 2)
	assert.Equal(t, "2024-05-01", got[0].Date.String())
	assertDec(t, "2", got[0].Total)
	assert.Equal(t, "2024-05-03", got[1].Date.String())
	assertDec(t, "8", got[1].Total)
	assert.Empty(t, DailyTrend(nil, core.NewDate(2024, 5, 1), core.NewDate(2024, 5, 31)))
}

func TestMonthlyGrowth(t *testing.T) {
	cases := []struct {
		cur, prev, want string
	}{
		{"150", "120", "25"},
		{"100", "300", "-66.67"},
		{"100", "0", "0"},
		{"0", "50", "-100"},
	}
	for _, tc := range cases {
		g := MonthlyGrowth(decimal.RequireFromString(tc.cur), decimal.RequireFromString(tc.prev))
		assertDec(t, tc.want, g.Percent)
	}
}

func TestYearOverYear(t *testing.T) {
	list := []core.Expense{
		exp(1, "5", "A", 2022, 1, 1),
		exp(2, "6", "A", 2023, 1, 1),
		exp(3, "7", "A", 2024, 1, 1),
	}
	got := YearOverYear(list, 2024, 2022)
	require.Len(t, got, 2)
	assert.Equal(t, 2022, got[0].Month.Year)
	assert.Equal(t, 2024, got[1].Month.Year)
}
