// Package analytics computes totals, averages, groupings and rankings over
// expense lists.
//
// Sums are exact. Only averages and percentages are rounded, to two fractional
// digits with halves rounded up.
package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

var hundred = decimal.NewFromInt(100)

// Total sums the amounts of list. The empty list totals zero.
func Total(list []core.Expense) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range list {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// Average returns total/count rounded to two digits. The empty list averages
// zero.
func Average(list []core.Expense) decimal.Decimal {
	return average(Total(list), len(list))
}

func average(total decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return total.DivRound(decimal.NewFromInt(int64(n)), 2)
}

// Summarize returns count, total and average of list.
func Summarize(list []core.Expense) core.Summary {
	total := Total(list)
	return core.Summary{
		Count:   len(list),
		Total:   total,
		Average: average(total, len(list)),
	}
}

// GroupByMonth totals list per calendar month, ascending by (year, month).
func GroupByMonth(list []core.Expense) []core.MonthTotal {
	totals := make(map[core.YearMonth]decimal.Decimal)
	for _, e := range list {
		ym := e.Date.YearMonth()
		totals[ym] = totals[ym].Add(e.Amount)
	}
	out := make([]core.MonthTotal, 0, len(totals))
	for ym, total := range totals {
		out = append(out, core.MonthTotal{Month: ym, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Month.Compare(out[j].Month) < 0
	})
	return out
}

// GroupByCategory aggregates list per category name.
func GroupByCategory(list []core.Expense) map[string]core.CategorySummary {
	groups := make(map[string]core.CategorySummary)
	for _, e := range list {
		s := groups[e.CategoryName]
		s.Count++
		s.Total = s.Total.Add(e.Amount)
		groups[e.CategoryName] = s
	}
	for name, s := range groups {
		s.Average = average(s.Total, s.Count)
		groups[name] = s
	}
	return groups
}

// TopN returns the n largest expenses by amount, descending. Equal amounts keep
// their input order. n <= 0 yields an empty list; n beyond len(list) yields all.
func TopN(list []core.Expense, n int) []core.Expense {
	if n <= 0 {
		return []core.Expense{}
	}
	sorted := make([]core.Expense, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Amount.GreaterThan(sorted[j].Amount)
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// AboveAverage returns expenses whose amount is strictly greater than the
// unrounded average of list, in input order.
func AboveAverage(list []core.Expense) []core.Expense {
	out := []core.Expense{}
	if len(list) == 0 {
		return out
	}
	total := Total(list)
	count := decimal.NewFromInt(int64(len(list)))
	for _, e := range list {
		// amount > total/count, compared without division
		if e.Amount.Mul(count).GreaterThan(total) {
			out = append(out, e)
		}
	}
	return out
}

// CategoryStatistics returns total, average, count, max and min of list. Every
// field is zero for the empty list.
func CategoryStatistics(list []core.Expense) core.Statistics {
	st := core.Statistics{
		Total:   decimal.Zero,
		Average: decimal.Zero,
		Max:     decimal.Zero,
		Min:     decimal.Zero,
	}
	for i, e := range list {
		st.Total = st.Total.Add(e.Amount)
		if i == 0 || e.Amount.GreaterThan(st.Max) {
			st.Max = e.Amount
		}
		if i == 0 || e.Amount.LessThan(st.Min) {
			st.Min = e.Amount
		}
	}
	st.Count = len(list)
	st.Average = average(st.Total, st.Count)
	return st
}

// CategoryBreakdown returns per-category statistics ordered by total
// descending, then by name.
func CategoryBreakdown(list []core.Expense) []core.CategoryStats {
	byName := make(map[string][]core.Expense)
	for _, e := range list {
		byName[e.CategoryName] = append(byName[e.CategoryName], e)
	}
	out := make([]core.CategoryStats, 0, len(byName))
	for name, items := range byName {
		out = append(out, core.CategoryStats{Category: name, Statistics: CategoryStatistics(items)})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// DailyTrend totals the expenses dated within [from, to] per day, ascending.
// Days without expenses are omitted.
func DailyTrend(list []core.Expense, from, to core.Date) []core.DailyTotal {
	idx := make(map[string]int)
	var out []core.DailyTotal
	for _, e := range list {
		if e.Date.Before(from.Time) || e.Date.After(to.Time) {
			continue
		}
		key := e.Date.String()
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, core.DailyTotal{Date: e.Date, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(e.Amount)
	}
	if out == nil {
		return []core.DailyTotal{}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out
}

// Growth compares two period totals.
type Growth struct {
	Current  decimal.Decimal
	Previous decimal.Decimal
	Percent  decimal.Decimal
}

// MonthlyGrowth returns the percentage change from previous to current,
// rounded to two digits. A zero previous total yields zero.
func MonthlyGrowth(current, previous decimal.Decimal) Growth {
	g := Growth{Current: current, Previous: previous, Percent: decimal.Zero}
	if previous.IsZero() {
		return g
	}
	g.Percent = current.Sub(previous).Mul(hundred).DivRound(previous, 2)
	return g
}

// YearOverYear totals two years month by month, ascending.
func YearOverYear(list []core.Expense, year1, year2 int) []core.MonthTotal {
	var picked []core.Expense
	for _, e := range list {
		if y := e.Date.Year(); y == year1 || y == year2 {
			picked = append(picked, e)
		}
	}
	return GroupByMonth(picked)
}
