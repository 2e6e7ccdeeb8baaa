package domain

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a fixed-point money value stored as minor units (1/100 of the
// currency unit). It is never represented as a binary float.
type Amount int64

const (
	minorDigits = 2
	// MaxAmount bounds balances and single amounts to NUMERIC(14,2).
	MaxAmount Amount = 999_999_999_999_99
)

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a base-10 string with at most two fractional digits.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, ErrInvalidAmount)
	}
	return amountFromExactDecimal(d)
}

func amountFromExactDecimal(d decimal.Decimal) (Amount, error) {
	if !d.Equal(d.Round(minorDigits)) {
		return 0, ErrInvalidAmount
	}
	if d.Abs().GreaterThan(MaxAmount.Decimal()) {
		return 0, ErrAmountTooLarge
	}
	return Amount(d.Mul(hundred).IntPart()), nil
}

// AmountFromDecimal rounds d half-up to minor units. This is the single
// rounding point for fees and conversions.
func AmountFromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Mul(hundred).Round(0).IntPart())
}

// Decimal converts minor units back to currency units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -minorDigits)
}

// MulRate multiplies by a rate and rounds once, half-up, to minor units.
func (a Amount) MulRate(rate decimal.Decimal) Amount {
	return Amount(decimal.NewFromInt(int64(a)).Mul(rate).Round(0).IntPart())
}

// String renders the amount with exactly two fractional digits.
func (a Amount) String() string {
	return a.Decimal().StringFixed(minorDigits)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts both "10.50" and 10.50 on input.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	parsed, err := ParseAmount(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
