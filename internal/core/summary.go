package core

import "github.com/shopspring/decimal"

// MonthTotal is the sum of expenses in one calendar month.
type MonthTotal struct {
	Month YearMonth
	Total decimal.Decimal
}

// DailyTotal is the sum of expenses on one day.
type DailyTotal struct {
	Date  Date
	Total decimal.Decimal
}

// Summary is count, total and average over a list of expenses.
type Summary struct {
	Count   int
	Total   decimal.Decimal
	Average decimal.Decimal
}

// CategorySummary aggregates the expenses of one category.
type CategorySummary struct {
	Count   int
	Total   decimal.Decimal
	Average decimal.Decimal
}

// Statistics describes one set of amounts. Every numeric field is zero, never
// absent, for an empty set.
type Statistics struct {
	Count   int
	Total   decimal.Decimal
	Average decimal.Decimal
	Max     decimal.Decimal
	Min     decimal.Decimal
}

// CategoryStats is a per-category row of a breakdown report.
type CategoryStats struct {
	Category string
	Statistics
}

// BudgetStatus reports spending against one configured limit.
type BudgetStatus struct {
	CategoryID   int64
	CategoryName string
	Month        YearMonth
	Limit        decimal.Decimal
	Spent        decimal.Decimal
	Remaining    decimal.Decimal
	Exceeded     bool
}
