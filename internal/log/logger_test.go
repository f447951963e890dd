package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContext(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Errorf("expected fallback logger, got component %q", l.Component())
	}

	var buf bytes.Buffer
	logger := New(Config{Handler: slog.NewTextHandler(&buf, nil)}).WithComponent(ComponentHTTP)
	ctx := context.WithValue(context.Background(), LoggerContextKey, logger)
	FromContext(ctx).InfoContext(ctx, "hello", FieldRequestID, "abc")

	out := buf.String()
	for _, want := range []string{"msg=hello", "component=http", "request_id=abc"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithError(errors.New("boom")).
		WithError(nil).
		WithErrorType(ErrorTypeBudget).
		WithBudget(0, "2024-05", "200.00", "200.00")

	if f[FieldError] != "boom" || f[FieldErrorType] != ErrorTypeBudget {
		t.Errorf("unexpected fields %v", f)
	}
	if _, ok := f[FieldCategoryID]; ok {
		t.Error("global budget rows carry no category id")
	}
	if got := len(f.ToSlice()); got != 2*len(f) {
		t.Errorf("ToSlice length %d, want %d", got, 2*len(f))
	}
}

func TestLogBudgetRejected(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Handler: slog.NewTextHandler(&buf, nil)}))
	sl.LogBudgetRejected(context.Background(), 3, "2024-05", "200.00", "200.00")

	out := buf.String()
	for _, want := range []string{"level=WARN", "category_id=3", "limit=200.00", "operation=enforce"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestComponentWrittenOnce(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Handler: slog.NewTextHandler(&buf, nil)})

	base.WithComponent(ComponentBackend).WithComponent(ComponentBudget).Info("x")
	base.WithComponent(ComponentStorage).With(FieldMonth, "2024-05").WarnContext(context.Background(), "y")
	NewStructuredLogger(base.WithComponent(ComponentHTTP)).
		LogBudgetRejected(context.Background(), 1, "2024-05", "10.00", "10.00")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 records, got %d: %q", len(lines), buf.String())
	}
	for i, want := range []string{"component=budget", "component=storage", "component=budget"} {
		if n := strings.Count(lines[i], "component="); n != 1 {
			t.Errorf("line %d has %d component attributes: %q", i, n, lines[i])
		}
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d %q missing %q", i, lines[i], want)
		}
	}
}
