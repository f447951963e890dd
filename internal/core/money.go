// Package core provides money parsing and handling utilities.
//
// Amounts are shopspring decimals. Ledger amounts carry at most two fractional
// digits, so they convert losslessly to integer cents for storage.
package core

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// MaxAmount is the largest amount a single expense may carry.
	MaxAmount = decimal.NewFromInt(1_000_000)

	// MaxLimit is the largest monthly spending limit.
	MaxLimit = decimal.NewFromInt(1_000_000_000_000)

	minAmount = decimal.New(1, -2)
)

// ParseAmount converts a decimal string to an expense amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Unlike
// display rounding, input with more than two fractional digits is rejected
// rather than rounded so that what is stored is exactly what was entered.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount checks an expense amount: 0.01 <= d <= 1,000,000 with at
// most two fractional digits.
func ValidateAmount(d decimal.Decimal) error {
	switch {
	case d.LessThan(minAmount):
		return ErrAmountTooSmall
	case d.GreaterThan(MaxAmount):
		return ErrAmountTooLarge
	case !HasCents(d):
		return ErrAmountPrecision
	}
	return nil
}

// HasCents reports whether d is representable with two fractional digits.
func HasCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}

// ToCents converts a two-digit amount to integer cents. Amounts with a
// fraction of a cent or outside the int64 cents range are refused.
func ToCents(d decimal.Decimal) (int64, error) {
	if !HasCents(d) {
		return 0, ErrAmountPrecision
	}
	c := d.Shift(2).BigInt()
	if !c.IsInt64() {
		return 0, ErrAmountOutOfRange
	}
	return c.Int64(), nil
}

// CheckedCents is ToCents with the failure reported as an invalid field.
func CheckedCents(field string, d decimal.Decimal) (int64, error) {
	c, err := ToCents(d)
	if err != nil {
		return 0, NewValidationError("invalid "+field, FieldError{Field: field, Message: err.Error()})
	}
	return c, nil
}

// ClampCents converts a bound to whole cents, rounding up when ceil is set
// and down otherwise, saturating at the int64 range.
func ClampCents(d decimal.Decimal, ceil bool) int64 {
	d = d.Shift(2)
	if ceil {
		d = d.Ceil()
	} else {
		d = d.Floor()
	}
	c := d.BigInt()
	switch {
	case c.IsInt64():
		return c.Int64()
	case c.Sign() > 0:
		return math.MaxInt64
	default:
		return math.MinInt64
	}
}

// FromCents converts integer cents back to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// RoundHalfUp rounds to two fractional digits, halves away from zero.
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrAmountTooSmall   = errors.New("must be greater than 0")
	ErrAmountTooLarge   = errors.New("must be lower than 1 000 000")
	ErrAmountPrecision  = errors.New("must have at most 2 decimal places")
	ErrAmountOutOfRange = errors.New("is out of range")
	ErrZeroDate         = errors.New("date cannot be zero")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidYear      = errors.New("invalid year")
)
