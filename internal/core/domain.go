package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DefaultCategoryColor is assigned to categories created without a color.
const DefaultCategoryColor = "#808080"

const (
	CategoryNameMin        = 2
	CategoryNameMax        = 50
	CategoryDescriptionMax = 300
	ExpenseDescriptionMin  = 3
	ExpenseDescriptionMax  = 200
)

type (
	Date struct {
		time.Time
	}

	// YearMonth identifies a calendar month.
	YearMonth struct {
		Year  int
		Month time.Month
	}

	Category struct {
		ID          int64
		Name        string
		Color       string
		Description string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	Expense struct {
		ID           int64
		Amount       decimal.Decimal
		Description  string
		CategoryID   int64
		CategoryName string // filled on read
		Date         Date
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// Budget is the spending ceiling for one category in one month.
	Budget struct {
		ID         int64
		CategoryID int64
		Month      YearMonth
		Limit      decimal.Decimal
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}
)

var (
	hexColor         = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	forbiddenInDescr = "<>{}"
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// YearMonth returns the calendar month containing d.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func NewYearMonth(year int, month time.Month) YearMonth {
	return YearMonth{Year: year, Month: month}
}

// ParseYearMonth parses a month in YYYY-MM format.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// First returns the first day of the month.
func (ym YearMonth) First() Date {
	return NewDate(ym.Year, int(ym.Month), 1)
}

// Last returns the last day of the month.
func (ym YearMonth) Last() Date {
	return Date{Time: ym.First().AddDate(0, 1, -1)}
}

// Prev returns the preceding month.
func (ym YearMonth) Prev() YearMonth {
	return DateOf(ym.First().AddDate(0, -1, 0)).YearMonth()
}

// Compare orders months chronologically.
func (ym YearMonth) Compare(other YearMonth) int {
	switch {
	case ym.Year != other.Year:
		if ym.Year < other.Year {
			return -1
		}
		return 1
	case ym.Month < other.Month:
		return -1
	case ym.Month > other.Month:
		return 1
	}
	return 0
}

func (ym YearMonth) Contains(d Date) bool {
	return d.Year() == ym.Year && d.Month() == ym.Month
}

func (ym YearMonth) Validate() error {
	if ym.Month < time.January || ym.Month > time.December {
		return ErrInvalidMonth
	}
	if ym.Year < 1 {
		return ErrInvalidYear
	}
	return nil
}

// Normalize trims fields and applies the default color.
func (c Category) Normalize() Category {
	c.Name = strings.TrimSpace(c.Name)
	c.Color = strings.TrimSpace(c.Color)
	c.Description = strings.TrimSpace(c.Description)
	if c.Color == "" {
		c.Color = DefaultCategoryColor
	}
	return c
}

func (c Category) Validate() error {
	var fields []FieldError
	n := utf8.RuneCountInString(c.Name)
	if n < CategoryNameMin || n > CategoryNameMax {
		fields = append(fields, FieldError{Field: "name", Message: fmt.Sprintf("must be between %d and %d characters", CategoryNameMin, CategoryNameMax)})
	}
	if c.Color != "" && !hexColor.MatchString(c.Color) {
		fields = append(fields, FieldError{Field: "color", Message: "must be a valid hex color (e.g., #FF5733)"})
	}
	if utf8.RuneCountInString(c.Description) > CategoryDescriptionMax {
		fields = append(fields, FieldError{Field: "description", Message: fmt.Sprintf("cannot exceed %d characters", CategoryDescriptionMax)})
	}
	if len(fields) > 0 {
		return NewValidationError("invalid category", fields...)
	}
	return nil
}

// DateRules bounds the dates an expense may carry.
type DateRules struct {
	Today        Date
	MaxAgeMonths int // 0 disables the lower bound
}

// Validate checks field constraints. Category existence is checked by the caller
// against the ledger.
func (e Expense) Validate(rules DateRules) error {
	var fields []FieldError
	if err := ValidateAmount(e.Amount); err != nil {
		fields = append(fields, FieldError{Field: "amount", Message: err.Error()})
	}

	descr := strings.TrimSpace(e.Description)
	n := utf8.RuneCountInString(descr)
	switch {
	case n == 0:
		fields = append(fields, FieldError{Field: "description", Message: "is required"})
	case n < ExpenseDescriptionMin || n > ExpenseDescriptionMax:
		fields = append(fields, FieldError{Field: "description", Message: fmt.Sprintf("must be between %d and %d characters", ExpenseDescriptionMin, ExpenseDescriptionMax)})
	case strings.ContainsAny(descr, forbiddenInDescr):
		fields = append(fields, FieldError{Field: "description", Message: "cannot contain special characters like <, >, {, }"})
	}

	if e.CategoryID <= 0 {
		fields = append(fields, FieldError{Field: "categoryId", Message: "is required"})
	}

	if err := e.Date.Validate(); err != nil {
		fields = append(fields, FieldError{Field: "expenseDate", Message: "is required"})
	} else if !rules.Today.IsZero() {
		if e.Date.After(rules.Today.Time) {
			fields = append(fields, FieldError{Field: "expenseDate", Message: "cannot be in the future"})
		} else if rules.MaxAgeMonths > 0 {
			oldest := rules.Today.AddDate(0, -rules.MaxAgeMonths, 0)
			if !e.Date.After(oldest) {
				fields = append(fields, FieldError{Field: "expenseDate", Message: fmt.Sprintf("must be within the last %d months", rules.MaxAgeMonths)})
			}
		}
	}

	if len(fields) > 0 {
		return NewValidationError("invalid expense", fields...)
	}
	return nil
}

func (b Budget) Validate() error {
	var fields []FieldError
	if b.CategoryID <= 0 {
		fields = append(fields, FieldError{Field: "categoryId", Message: "is required"})
	}
	if err := b.Month.Validate(); err != nil {
		fields = append(fields, FieldError{Field: "month", Message: err.Error()})
	}
	if b.Limit.IsNegative() {
		fields = append(fields, FieldError{Field: "limit", Message: "cannot be negative"})
	} else if b.Limit.GreaterThan(MaxLimit) {
		fields = append(fields, FieldError{Field: "limit", Message: "cannot exceed " + MaxLimit.String()})
	} else if !HasCents(b.Limit) {
		fields = append(fields, FieldError{Field: "limit", Message: "must have at most 2 decimal places"})
	}
	if len(fields) > 0 {
		return NewValidationError("invalid budget", fields...)
	}
	return nil
}
