package storage

import (
	"strings"

	"tally/internal/core"
	"tally/internal/filter"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereClause translates p into a WHERE fragment over the expenses (e) and
// categories (c) join. Amounts are compared in cents: a lower bound rounds up
// and an upper bound rounds down, so fractional-cent bounds stay inclusive.
// Bounds beyond the int64 cents range saturate and still narrow the result.
func whereClause(p filter.Predicate) (string, []any) {
	if len(p) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(p))
	args := make([]any, 0, len(p)+1)
	for _, c := range p {
		switch c.Kind {
		case filter.ByCategory:
			conds = append(conds, "e.category_id = ?")
			args = append(args, c.CategoryID)
		case filter.AmountAtLeast:
			conds = append(conds, "e.amount_cents >= ?")
			args = append(args, core.ClampCents(c.Amount, true))
		case filter.AmountAtMost:
			conds = append(conds, "e.amount_cents <= ?")
			args = append(args, core.ClampCents(c.Amount, false))
		case filter.DateFrom:
			conds = append(conds, "e.expense_date >= ?")
			args = append(args, c.Date.String())
		case filter.DateTo:
			conds = append(conds, "e.expense_date <= ?")
			args = append(args, c.Date.String())
		case filter.DescriptionContains:
			conds = append(conds, `LOWER(e.description) LIKE ? ESCAPE '\'`)
			args = append(args, likePattern(c.Text))
		case filter.AnyTextContains:
			conds = append(conds, `(LOWER(e.description) LIKE ? ESCAPE '\' OR LOWER(c.name) LIKE ? ESCAPE '\')`)
			pat := likePattern(c.Text)
			args = append(args, pat, pat)
		default:
			// unknown clauses match nothing, as in memory
			conds = append(conds, "0")
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func likePattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}
