package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/filter"
)

// decodeJSON reads a single JSON object from the request body into dst.
// Unknown fields and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.NewInvalidInput("request body is empty")
		case errors.As(err, &maxErr):
			return core.NewInvalidInput("request body exceeds %d bytes", maxErr.Limit)
		}
		return core.NewInvalidInput("malformed JSON body: %v", err)
	}
	if dec.More() {
		return core.NewInvalidInput("request body must contain a single JSON object")
	}
	return nil
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewInvalidInput("invalid %s %q", name, raw)
	}
	return id, nil
}

// pathMonth parses a YYYY-MM path parameter.
func pathMonth(r *http.Request, name string) (core.YearMonth, error) {
	raw := r.PathValue(name)
	ym, err := core.ParseYearMonth(raw)
	if err != nil {
		return core.YearMonth{}, core.NewInvalidInput("invalid %s %q, expected YYYY-MM", name, raw)
	}
	return ym, nil
}

// ParseCriteria extracts filter criteria from query parameters. Every
// malformed parameter is reported, not just the first.
func ParseCriteria(query url.Values) (filter.Criteria, error) {
	var (
		c      filter.Criteria
		fields []core.FieldError
	)

	if v := strings.TrimSpace(query.Get("categoryId")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fields = append(fields, core.FieldError{Field: "categoryId", Message: "must be an integer"})
		} else {
			c.CategoryID = &id
		}
	}
	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"minAmount", &c.MinAmount}, {"maxAmount", &c.MaxAmount}} {
		v := strings.TrimSpace(query.Get(p.name))
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", "."))
		if err != nil {
			fields = append(fields, core.FieldError{Field: p.name, Message: "must be a decimal number"})
			continue
		}
		*p.dst = &d
	}
	for _, p := range []struct {
		name string
		dst  **core.Date
	}{{"startDate", &c.StartDate}, {"endDate", &c.EndDate}} {
		v := strings.TrimSpace(query.Get(p.name))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			fields = append(fields, core.FieldError{Field: p.name, Message: "must be a date in YYYY-MM-DD format"})
			continue
		}
		*p.dst = &d
	}
	c.Keyword = strings.TrimSpace(query.Get("keyword"))

	if len(fields) > 0 {
		return filter.Criteria{}, core.NewValidationError("invalid filter", fields...)
	}
	return c, nil
}

// ParseMonthParams extracts year and month from query parameters, using the
// month of now for whichever is absent.
func ParseMonthParams(query url.Values, now time.Time) (core.YearMonth, error) {
	ym := core.DateOf(now).YearMonth()
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.YearMonth{}, core.NewValidationError("invalid month", core.FieldError{Field: "year", Message: "must be an integer"})
		}
		ym.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.YearMonth{}, core.NewValidationError("invalid month", core.FieldError{Field: "month", Message: "must be an integer"})
		}
		ym.Month = time.Month(m)
	}
	if err := ym.Validate(); err != nil {
		return core.YearMonth{}, core.NewInvalidInput("invalid month %s: %v", ym, err)
	}
	return ym, nil
}

// queryMonth parses a YYYY-MM query parameter, defaulting to the month of now.
func queryMonth(query url.Values, name string, now time.Time) (core.YearMonth, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return core.DateOf(now).YearMonth(), nil
	}
	ym, err := core.ParseYearMonth(v)
	if err != nil {
		return core.YearMonth{}, core.NewValidationError("invalid month", core.FieldError{Field: name, Message: "must be a month in YYYY-MM format"})
	}
	return ym, nil
}

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(query url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.NewValidationError(fmt.Sprintf("invalid %s", name), core.FieldError{Field: name, Message: "must be an integer"})
	}
	return n, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(query url.Values, name string) (*core.Date, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return nil, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return nil, core.NewValidationError(fmt.Sprintf("invalid %s", name), core.FieldError{Field: name, Message: "must be a date in YYYY-MM-DD format"})
	}
	return &d, nil
}
