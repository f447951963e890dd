package http

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"tally/internal/analytics"
	"tally/internal/core"
	"tally/internal/services"
)

// Request bodies. Tags catch malformed input early; the domain re-checks
// every rule.
type (
	categoryRequest struct {
		Name        string `json:"name" validate:"required,max=50"`
		Color       string `json:"color" validate:"omitempty,hexcolor"`
		Description string `json:"description" validate:"max=300"`
	}

	categoryUpdateRequest struct {
		Name        *string `json:"name" validate:"omitempty,max=50"`
		Color       *string `json:"color" validate:"omitempty,hexcolor"`
		Description *string `json:"description" validate:"omitempty,max=300"`
	}

	expenseRequest struct {
		Amount      *decimal.Decimal `json:"amount" validate:"required"`
		Description string           `json:"description" validate:"required,max=200"`
		CategoryID  int64            `json:"categoryId" validate:"required,gt=0"`
		ExpenseDate string           `json:"expenseDate" validate:"required,datetime=2006-01-02"`
	}

	expenseUpdateRequest struct {
		Amount      *decimal.Decimal `json:"amount"`
		Description *string          `json:"description" validate:"omitempty,max=200"`
		CategoryID  *int64           `json:"categoryId" validate:"omitempty,gt=0"`
		ExpenseDate *string          `json:"expenseDate" validate:"omitempty,datetime=2006-01-02"`
	}

	budgetRequest struct {
		Limit *decimal.Decimal `json:"limit" validate:"required"`
	}
)

// Response bodies. Amounts are rendered as JSON numbers with two decimals.
type (
	categoryResponse struct {
		ID          int64     `json:"id"`
		Name        string    `json:"name"`
		Color       string    `json:"color"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	expenseResponse struct {
		ID           int64       `json:"id"`
		Amount       json.Number `json:"amount"`
		Description  string      `json:"description"`
		CategoryID   int64       `json:"categoryId"`
		CategoryName string      `json:"categoryName"`
		ExpenseDate  string      `json:"expenseDate"`
		CreatedAt    time.Time   `json:"createdAt"`
		UpdatedAt    time.Time   `json:"updatedAt"`
	}

	summaryResponse struct {
		Count   int         `json:"count"`
		Total   json.Number `json:"total"`
		Average json.Number `json:"average"`
	}

	monthTotalResponse struct {
		Month string      `json:"month"`
		Total json.Number `json:"total"`
	}

	dailyTotalResponse struct {
		Date  string      `json:"date"`
		Total json.Number `json:"total"`
	}

	statisticsResponse struct {
		Count   int         `json:"count"`
		Total   json.Number `json:"total"`
		Average json.Number `json:"average"`
		Max     json.Number `json:"max"`
		Min     json.Number `json:"min"`
	}

	categoryStatsResponse struct {
		Category string `json:"category"`
		statisticsResponse
	}

	growthResponse struct {
		Month    string      `json:"month"`
		Current  json.Number `json:"current"`
		Previous json.Number `json:"previous"`
		Percent  json.Number `json:"percent"`
	}

	overviewResponse struct {
		Month      string                  `json:"month"`
		Summary    summaryResponse         `json:"summary"`
		Categories []categoryStatsResponse `json:"categories"`
		Growth     growthResponse          `json:"growth"`
		Top        []expenseResponse       `json:"top"`
	}

	budgetResponse struct {
		ID         int64       `json:"id"`
		CategoryID int64       `json:"categoryId"`
		Month      string      `json:"month"`
		Limit      json.Number `json:"limit"`
		CreatedAt  time.Time   `json:"createdAt"`
		UpdatedAt  time.Time   `json:"updatedAt"`
	}

	budgetStatusResponse struct {
		CategoryID   int64       `json:"categoryId"`
		CategoryName string      `json:"categoryName"`
		Month        string      `json:"month"`
		Limit        json.Number `json:"limit"`
		Spent        json.Number `json:"spent"`
		Remaining    json.Number `json:"remaining"`
		Exceeded     bool        `json:"exceeded"`
	}

	remainingResponse struct {
		CategoryID int64       `json:"categoryId"`
		Month      string      `json:"month"`
		Remaining  json.Number `json:"remaining"`
	}

	exceededResponse struct {
		CategoryID int64  `json:"categoryId"`
		Month      string `json:"month"`
		Exceeded   bool   `json:"exceeded"`
	}
)

func amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Color:       c.Color,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func toCategoryResponses(list []core.Category) []categoryResponse {
	out := make([]categoryResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCategoryResponse(c))
	}
	return out
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:           e.ID,
		Amount:       amount(e.Amount),
		Description:  e.Description,
		CategoryID:   e.CategoryID,
		CategoryName: e.CategoryName,
		ExpenseDate:  e.Date.String(),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func toExpenseResponses(list []core.Expense) []expenseResponse {
	out := make([]expenseResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toExpenseResponse(e))
	}
	return out
}

func toSummaryResponse(s core.Summary) summaryResponse {
	return summaryResponse{Count: s.Count, Total: amount(s.Total), Average: amount(s.Average)}
}

func toMonthTotalResponses(list []core.MonthTotal) []monthTotalResponse {
	out := make([]monthTotalResponse, 0, len(list))
	for _, m := range list {
		out = append(out, monthTotalResponse{Month: m.Month.String(), Total: amount(m.Total)})
	}
	return out
}

func toDailyTotalResponses(list []core.DailyTotal) []dailyTotalResponse {
	out := make([]dailyTotalResponse, 0, len(list))
	for _, d := range list {
		out = append(out, dailyTotalResponse{Date: d.Date.String(), Total: amount(d.Total)})
	}
	return out
}

func toStatisticsResponse(s core.Statistics) statisticsResponse {
	return statisticsResponse{
		Count:   s.Count,
		Total:   amount(s.Total),
		Average: amount(s.Average),
		Max:     amount(s.Max),
		Min:     amount(s.Min),
	}
}

func toCategoryStatsResponses(list []core.CategoryStats) []categoryStatsResponse {
	out := make([]categoryStatsResponse, 0, len(list))
	for _, c := range list {
		out = append(out, categoryStatsResponse{Category: c.Category, statisticsResponse: toStatisticsResponse(c.Statistics)})
	}
	return out
}

func toGrowthResponse(month core.YearMonth, g analytics.Growth) growthResponse {
	return growthResponse{
		Month:    month.String(),
		Current:  amount(g.Current),
		Previous: amount(g.Previous),
		Percent:  amount(g.Percent),
	}
}

func toOverviewResponse(o services.Overview) overviewResponse {
	return overviewResponse{
		Month:      o.Month.String(),
		Summary:    toSummaryResponse(o.Summary),
		Categories: toCategoryStatsResponses(o.Categories),
		Growth:     toGrowthResponse(o.Month, o.Growth),
		Top:        toExpenseResponses(o.Top),
	}
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:         b.ID,
		CategoryID: b.CategoryID,
		Month:      b.Month.String(),
		Limit:      amount(b.Limit),
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func toBudgetStatusResponses(list []core.BudgetStatus) []budgetStatusResponse {
	out := make([]budgetStatusResponse, 0, len(list))
	for _, b := range list {
		out = append(out, budgetStatusResponse{
			CategoryID:   b.CategoryID,
			CategoryName: b.CategoryName,
			Month:        b.Month.String(),
			Limit:        amount(b.Limit),
			Spent:        amount(b.Spent),
			Remaining:    amount(b.Remaining),
			Exceeded:     b.Exceeded,
		})
	}
	return out
}

// toCategory maps a create request onto a new category.
func (req categoryRequest) toCategory() core.Category {
	return core.Category{
		Name:        sanitizeInput(req.Name),
		Color:       sanitizeInput(req.Color),
		Description: sanitizeInput(req.Description),
	}
}

func (req categoryUpdateRequest) toUpdate() services.CategoryUpdate {
	return services.CategoryUpdate{
		Name:        sanitizePtr(req.Name),
		Color:       sanitizePtr(req.Color),
		Description: sanitizePtr(req.Description),
	}
}

func (req expenseRequest) toExpense() (core.Expense, error) {
	d, err := core.ParseDate(req.ExpenseDate)
	if err != nil {
		return core.Expense{}, core.NewValidationError("invalid request", core.FieldError{Field: "expenseDate", Message: "must be a date in YYYY-MM-DD format"})
	}
	return core.Expense{
		Amount:      *req.Amount,
		Description: sanitizeInput(req.Description),
		CategoryID:  req.CategoryID,
		Date:        d,
	}, nil
}

func (req expenseUpdateRequest) toUpdate() (services.ExpenseUpdate, error) {
	u := services.ExpenseUpdate{
		Amount:      req.Amount,
		Description: sanitizePtr(req.Description),
		CategoryID:  req.CategoryID,
	}
	if req.ExpenseDate != nil {
		d, err := core.ParseDate(*req.ExpenseDate)
		if err != nil {
			return u, core.NewValidationError("invalid request", core.FieldError{Field: "expenseDate", Message: "must be a date in YYYY-MM-DD format"})
		}
		u.Date = &d
	}
	return u, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest runs the struct tags of req and converts failures into a
// validation error with one entry per field.
func (s *Server) validateRequest(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate request: %w", err)
	}
	fields := make([]core.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, core.FieldError{Field: fe.Field(), Message: validationMessage(fe)})
	}
	return core.NewValidationError("invalid request", fields...)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("cannot exceed %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "hexcolor":
		return "must be a valid hex color (e.g., #FF5733)"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
