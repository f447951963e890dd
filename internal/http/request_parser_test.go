package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tally/internal/core"
)

func TestParseCriteria(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		wantErr   bool
		wantField string
		check     func(t *testing.T, c criteriaView)
	}{
		{
			name:  "empty query",
			query: url.Values{},
			check: func(t *testing.T, c criteriaView) {
				if c.category != "" || c.min != "" || c.max != "" || c.start != "" || c.end != "" || c.keyword != "" {
					t.Errorf("expected no criteria, got %+v", c)
				}
			},
		},
		{
			name: "all parameters",
			query: url.Values{
				"categoryId": {"3"},
				"minAmount":  {"10"},
				"maxAmount":  {"99,50"},
				"startDate":  {"2024-01-01"},
				"endDate":    {"2024-01-31"},
				"keyword":    {"  lunch "},
			},
			check: func(t *testing.T, c criteriaView) {
				want := criteriaView{category: "3", min: "10", max: "99.5", start: "2024-01-01", end: "2024-01-31", keyword: "lunch"}
				if c != want {
					t.Errorf("got %+v, want %+v", c, want)
				}
			},
		},
		{name: "bad category", query: url.Values{"categoryId": {"food"}}, wantErr: true, wantField: "categoryId"},
		{name: "bad amount", query: url.Values{"minAmount": {"ten"}}, wantErr: true, wantField: "minAmount"},
		{name: "bad date", query: url.Values{"endDate": {"31/01/2024"}}, wantErr: true, wantField: "endDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCriteria(tt.query)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				if core.KindOf(err) != core.KindInvalidInput {
					t.Errorf("expected invalid input, got %v", err)
				}
				fields := core.FieldsOf(err)
				if len(fields) != 1 || fields[0].Field != tt.wantField {
					t.Errorf("expected one %s field error, got %v", tt.wantField, fields)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			v := criteriaView{keyword: c.Keyword}
			if c.CategoryID != nil {
				v.category = itoa(int(*c.CategoryID))
			}
			if c.MinAmount != nil {
				v.min = c.MinAmount.String()
			}
			if c.MaxAmount != nil {
				v.max = c.MaxAmount.String()
			}
			if c.StartDate != nil {
				v.start = c.StartDate.String()
			}
			if c.EndDate != nil {
				v.end = c.EndDate.String()
			}
			tt.check(t, v)
		})
	}
}

type criteriaView struct {
	category, min, max, start, end, keyword string
}

func TestParseCriteriaReportsEveryField(t *testing.T) {
	_, err := ParseCriteria(url.Values{"minAmount": {"x"}, "startDate": {"y"}})
	if got := len(core.FieldsOf(err)); got != 2 {
		t.Errorf("expected 2 field errors, got %d (%v)", got, err)
	}
}

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		query   url.Values
		want    string
		wantErr bool
	}{
		{name: "defaults to now", query: url.Values{}, want: "2024-05"},
		{name: "month only", query: url.Values{"month": {"2"}}, want: "2024-02"},
		{name: "year and month", query: url.Values{"year": {"2023"}, "month": {"12"}}, want: "2023-12"},
		{name: "month out of range", query: url.Values{"month": {"13"}}, wantErr: true},
		{name: "not a number", query: url.Values{"year": {"last"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ym, err := ParseMonthParams(tt.query, now)
			if tt.wantErr {
				if core.KindOf(err) != core.KindInvalidInput {
					t.Fatalf("expected invalid input, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ym.String() != tt.want {
				t.Errorf("got %s, want %s", ym, tt.want)
			}
		})
	}
}

func TestQueryHelpers(t *testing.T) {
	q := url.Values{"n": {"5"}, "bad": {"x"}, "month": {"2024-03"}, "d": {"2024-03-09"}}

	if n, err := queryInt(q, "n", 10); err != nil || n != 5 {
		t.Errorf("queryInt(n) = %d, %v", n, err)
	}
	if n, err := queryInt(q, "missing", 10); err != nil || n != 10 {
		t.Errorf("queryInt(missing) = %d, %v", n, err)
	}
	if _, err := queryInt(q, "bad", 10); err == nil {
		t.Error("queryInt(bad) should fail")
	}

	now := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)
	if ym, err := queryMonth(q, "month", now); err != nil || ym.String() != "2024-03" {
		t.Errorf("queryMonth = %s, %v", ym, err)
	}
	if ym, _ := queryMonth(url.Values{}, "month", now); ym.String() != "2024-05" {
		t.Errorf("queryMonth default = %s", ym)
	}

	if d, err := queryDate(q, "d"); err != nil || d == nil || d.String() != "2024-03-09" {
		t.Errorf("queryDate = %v, %v", d, err)
	}
	if d, err := queryDate(q, "none"); err != nil || d != nil {
		t.Errorf("queryDate(none) = %v, %v", d, err)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"Food"}`},
		{name: "empty", body: ``, wantErr: true},
		{name: "malformed", body: `{"name":`, wantErr: true},
		{name: "unknown field", body: `{"name":"Food","owner":"me"}`, wantErr: true},
		{name: "trailing object", body: `{"name":"Food"}{"name":"Other"}`, wantErr: true},
		{name: "too large", body: `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst categoryRequest
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr {
				if core.KindOf(err) != core.KindInvalidInput {
					t.Fatalf("expected invalid input, got %v", err)
				}
				return
			}
			if err != nil || dst.Name != "Food" {
				t.Fatalf("got %+v, %v", dst, err)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  hello  ", "hello"},
		{"a\x00b\x07c", "abc"},
		{"line1\nline2", "line1\nline2"},
		{"tab\there", "tab\there"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
