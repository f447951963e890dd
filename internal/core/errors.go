package core

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies caller-facing failures. Anything that is not a *Error is an
// unexpected fault.
type Kind string

const (
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindInvalidInput   Kind = "INVALID_INPUT"
	KindInvalidRange   Kind = "INVALID_RANGE"
	KindBudgetExceeded Kind = "BUDGET_EXCEEDED"
	KindBudgetNotFound Kind = "BUDGET_NOT_FOUND"
)

// Sentinels for errors.Is. A *Error matches the sentinel of its kind;
// InvalidRange also matches ErrInvalidInput.
var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrInvalidInput   = &Error{Kind: KindInvalidInput}
	ErrInvalidRange   = &Error{Kind: KindInvalidRange}
	ErrBudgetExceeded = &Error{Kind: KindBudgetExceeded}
	ErrBudgetNotFound = &Error{Kind: KindBudgetNotFound}
)

// FieldError is a single field validation failure.
type FieldError struct {
	Field   string
	Message string
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Message
}

type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " "))
	}
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.String()
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so wrapped domain errors compare against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return t.Kind == KindInvalidInput && e.Kind == KindInvalidRange
}

// KindOf returns the kind of the first *Error in err's chain, or "" for
// unexpected faults.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// FieldsOf returns per-field validation messages carried by err.
func FieldsOf(err error) []FieldError {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}

func NewNotFound(entity string, key any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", entity, key)}
}

func NewConflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewInvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func NewValidationError(msg string, fields ...FieldError) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg, Fields: fields}
}

func NewInvalidRange(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidRange, Message: fmt.Sprintf(format, args...)}
}

func NewBudgetExceeded(format string, args ...any) *Error {
	return &Error{Kind: KindBudgetExceeded, Message: fmt.Sprintf(format, args...)}
}

func NewBudgetNotFound(categoryID int64, month YearMonth) *Error {
	return &Error{Kind: KindBudgetNotFound, Message: fmt.Sprintf("there is no budget for category %d at %s", categoryID, month)}
}
