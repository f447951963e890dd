// Package filter composes optional expense criteria into a predicate.
//
// A Predicate is a list of typed clauses joined by AND. Clauses evaluate in
// memory through Match; SQL-backed stores translate each Kind into a WHERE
// condition instead, so the same predicate can be pushed down to storage.
package filter

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// Kind identifies the condition a Clause applies.
type Kind int

const (
	ByCategory Kind = iota + 1
	AmountAtLeast
	AmountAtMost
	DateFrom
	DateTo
	DescriptionContains
	// AnyTextContains matches description or category name.
	AnyTextContains
)

func (k Kind) String() string {
	switch k {
	case ByCategory:
		return "category"
	case AmountAtLeast:
		return "min_amount"
	case AmountAtMost:
		return "max_amount"
	case DateFrom:
		return "start_date"
	case DateTo:
		return "end_date"
	case DescriptionContains:
		return "keyword"
	case AnyTextContains:
		return "search"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Clause is one condition. Only the field that belongs to Kind is set; Text is
// stored lower-cased.
type Clause struct {
	Kind       Kind
	CategoryID int64
	Amount     decimal.Decimal
	Date       core.Date
	Text       string
}

// Match reports whether e satisfies the clause. Bounds are inclusive.
func (c Clause) Match(e core.Expense) bool {
	switch c.Kind {
	case ByCategory:
		return e.CategoryID == c.CategoryID
	case AmountAtLeast:
		return e.Amount.GreaterThanOrEqual(c.Amount)
	case AmountAtMost:
		return e.Amount.LessThanOrEqual(c.Amount)
	case DateFrom:
		return !e.Date.Before(c.Date.Time)
	case DateTo:
		return !e.Date.After(c.Date.Time)
	case DescriptionContains:
		return strings.Contains(strings.ToLower(e.Description), c.Text)
	case AnyTextContains:
		return strings.Contains(strings.ToLower(e.Description), c.Text) ||
			strings.Contains(strings.ToLower(e.CategoryName), c.Text)
	}
	return false
}

func (c Clause) String() string {
	switch c.Kind {
	case ByCategory:
		return fmt.Sprintf("%s=%d", c.Kind, c.CategoryID)
	case AmountAtLeast, AmountAtMost:
		return fmt.Sprintf("%s=%s", c.Kind, c.Amount.String())
	case DateFrom, DateTo:
		return fmt.Sprintf("%s=%s", c.Kind, c.Date)
	default:
		return fmt.Sprintf("%s=%q", c.Kind, c.Text)
	}
}

// Predicate is a conjunction of clauses. The empty predicate matches every
// expense.
type Predicate []Clause

// Match reports whether e satisfies every clause.
func (p Predicate) Match(e core.Expense) bool {
	for _, c := range p {
		if !c.Match(e) {
			return false
		}
	}
	return true
}

// Apply returns the expenses that satisfy p, preserving input order.
func (p Predicate) Apply(list []core.Expense) []core.Expense {
	out := make([]core.Expense, 0, len(list))
	for _, e := range list {
		if p.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// And returns a new predicate carrying the clauses of both.
func (p Predicate) And(other Predicate) Predicate {
	out := make(Predicate, 0, len(p)+len(other))
	out = append(out, p...)
	return append(out, other...)
}

// Key is a stable textual form used for cache keys and logs.
func (p Predicate) Key() string {
	if len(p) == 0 {
		return "all"
	}
	parts := make([]string, len(p))
	for i, c := range p {
		parts[i] = c.String()
	}
	return strings.Join(parts, "&")
}

// Criteria holds optional filter inputs. Nil fields and an empty keyword impose
// no constraint.
type Criteria struct {
	CategoryID *int64
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
	StartDate  *core.Date
	EndDate    *core.Date
	Keyword    string
}

// Build validates the criteria and turns them into a predicate.
func (c Criteria) Build() (Predicate, error) {
	if c.StartDate != nil && c.EndDate != nil && c.StartDate.After(c.EndDate.Time) {
		return nil, core.NewInvalidRange("start date %s is after end date %s", c.StartDate, c.EndDate)
	}
	if c.MinAmount != nil && c.MaxAmount != nil && c.MinAmount.GreaterThan(*c.MaxAmount) {
		return nil, core.NewInvalidRange("minimum amount %s is greater than maximum amount %s", c.MinAmount, c.MaxAmount)
	}

	var p Predicate
	if c.CategoryID != nil {
		p = append(p, Clause{Kind: ByCategory, CategoryID: *c.CategoryID})
	}
	if c.MinAmount != nil {
		p = append(p, Clause{Kind: AmountAtLeast, Amount: *c.MinAmount})
	}
	if c.MaxAmount != nil {
		p = append(p, Clause{Kind: AmountAtMost, Amount: *c.MaxAmount})
	}
	if c.StartDate != nil {
		p = append(p, Clause{Kind: DateFrom, Date: *c.StartDate})
	}
	if c.EndDate != nil {
		p = append(p, Clause{Kind: DateTo, Date: *c.EndDate})
	}
	if kw := normalizeText(c.Keyword); kw != "" {
		p = append(p, Clause{Kind: DescriptionContains, Text: kw})
	}
	return p, nil
}

// Search matches expenses whose description or category name contains keyword.
func Search(keyword string) Predicate {
	kw := normalizeText(keyword)
	if kw == "" {
		return nil
	}
	return Predicate{{Kind: AnyTextContains, Text: kw}}
}

// Month restricts to one calendar month and, when categoryID is non-nil, one
// category.
func Month(ym core.YearMonth, categoryID *int64) Predicate {
	p := Predicate{
		{Kind: DateFrom, Date: ym.First()},
		{Kind: DateTo, Date: ym.Last()},
	}
	if categoryID != nil {
		p = append(p, Clause{Kind: ByCategory, CategoryID: *categoryID})
	}
	return p
}

// Between restricts to an inclusive date range.
func Between(from, to core.Date) Predicate {
	return Predicate{
		{Kind: DateFrom, Date: from},
		{Kind: DateTo, Date: to},
	}
}

// Category restricts to one category.
func Category(id int64) Predicate {
	return Predicate{{Kind: ByCategory, CategoryID: id}}
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
