// Package types provides common types used across settle.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Arithmetic errors.
var (
	ErrOverflow       = errors.New("settle: arithmetic overflow")
	ErrNotInteger     = errors.New("settle: amount must be an integer")
	ErrInvalidShares  = errors.New("settle: share vector must sum to 10000 bps")
	ErrInvalidAddress = errors.New("settle: invalid address")
)

var (
	maxAmount = decimal.RequireFromString("170141183460469231731687303715884105727")
	minAmount = decimal.RequireFromString("-170141183460469231731687303715884105728")
	bpsScale  = decimal.NewFromInt(int64(MaxBasisPoints))
)

// Amount is an exact asset quantity in the smallest unit of the asset. It
// behaves like a signed 128-bit integer: every constructor and operation
// rejects values outside [-2^127, 2^127-1] with ErrOverflow instead of
// wrapping. The zero value is 0.
type Amount struct {
	d decimal.Decimal
}

// NewAmount creates an Amount from an int64.
func NewAmount(v int64) Amount { return Amount{d: decimal.NewFromInt(v)} }

// ParseAmount parses a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// MustAmount is like ParseAmount but panics on error. Use for constants.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal checks that d is an integer inside the 128-bit range.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.IsInteger() {
		return Amount{}, fmt.Errorf("%w: %s", ErrNotInteger, d.String())
	}
	if d.GreaterThan(maxAmount) || d.LessThan(minAmount) {
		return Amount{}, fmt.Errorf("%w: %s", ErrOverflow, d.String())
	}
	return Amount{d: d}, nil
}

// Arithmetic operations

// Add returns a+b, or ErrOverflow when the sum leaves the 128-bit range.
func (a Amount) Add(b Amount) (Amount, error) { return FromDecimal(a.d.Add(b.d)) }

// Sub returns a-b, or ErrOverflow when the difference leaves the 128-bit range.
func (a Amount) Sub(b Amount) (Amount, error) { return FromDecimal(a.d.Sub(b.d)) }

// MulBps returns a*bps/10000 truncated toward zero, which is the floor for
// non-negative amounts. The intermediate product must itself fit the 128-bit
// range.
func (a Amount) MulBps(bps BasisPoints) (Amount, error) {
	product, err := FromDecimal(a.d.Mul(decimal.NewFromInt(int64(bps))))
	if err != nil {
		return Amount{}, err
	}
	q, _ := product.d.QuoRem(bpsScale, 0)
	return Amount{d: q}, nil
}

// Comparison methods

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// Equal reports whether a == b.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool { return a.d.LessThan(b.d) }

// Sign returns -1, 0 or +1.
func (a Amount) Sign() int { return a.d.Sign() }

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool { return a.d.IsPositive() }

// IsNegative returns true if the amount is less than zero.
func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// Decimal exposes the underlying value.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// String returns the base-10 integer representation.
func (a Amount) String() string { return a.d.String() }

// Encoding. Amounts travel as strings so 128-bit values survive JSON.

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.d.String())
}

// UnmarshalJSON accepts both "123" and 123.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) { return []byte(a.d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler; the state codec uses it.
func (a Amount) MarshalBinary() ([]byte, error) { return a.MarshalText() }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (a *Amount) UnmarshalBinary(data []byte) error { return a.UnmarshalText(data) }

// Sum adds amounts with overflow checking.
func Sum(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return Amount{}, err
		}
		total = next
	}
	return total, nil
}
