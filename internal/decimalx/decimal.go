// Package decimalx provides type-safe financial and temporal primitives
// used across the hedge bot. All financial calculations use decimal
// arithmetic to prevent floating-point precision errors.
package decimalx

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegativePrice indicates an invalid negative price value.
	ErrNegativePrice = errors.New("price cannot be negative")
	// ErrNegativeAmount indicates an invalid negative amount value.
	ErrNegativeAmount = errors.New("amount cannot be negative")
	// ErrDivisionByZero indicates attempted division by zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrInvalidDecimal indicates an invalid decimal value.
	ErrInvalidDecimal = errors.New("invalid decimal value")
)

// Decimal wraps shopspring/decimal.Decimal for precise arithmetic. It carries
// no sign constraint; use Price or Amount where a non-negative value is a
// domain invariant, and Signed for quantities that are legitimately negative
// (exposure delta, PnL, funding rate).
type Decimal struct {
	value decimal.Decimal
}

// NewDecimal creates a Decimal from an int64 value.
func NewDecimal(value int64) Decimal {
	return Decimal{value: decimal.NewFromInt(value)}
}

// NewDecimalFromFloat creates a Decimal from a float64 value.
// Use sparingly; prefer NewDecimalFromString for external data.
func NewDecimalFromFloat(value float64) Decimal {
	return Decimal{value: decimal.NewFromFloat(value)}
}

// NewDecimalFromString creates a Decimal from a string representation.
func NewDecimalFromString(value string) (Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Decimal{}, fmt.Errorf("%w: %s", ErrInvalidDecimal, err)
	}
	return Decimal{value: d}, nil
}

// MustDecimalFromString creates a Decimal from a string, panicking on error.
// Only use for known-valid constants in tests or initialization.
func MustDecimalFromString(value string) Decimal {
	d, err := NewDecimalFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

// FromShopspring wraps an existing shopspring decimal.Decimal.
func FromShopspring(d decimal.Decimal) Decimal {
	return Decimal{value: d}
}

// Shopspring returns the underlying shopspring/decimal.Decimal.
func (d Decimal) Shopspring() decimal.Decimal {
	return d.value
}

// Zero returns a Decimal representing zero.
func Zero() Decimal {
	return Decimal{value: decimal.Zero}
}

// One returns a Decimal representing one.
func One() Decimal {
	return Decimal{value: decimal.NewFromInt(1)}
}

// Add returns the sum of two Decimals.
func (d Decimal) Add(other Decimal) Decimal {
	return Decimal{value: d.value.Add(other.value)}
}

// Sub returns the difference of two Decimals.
func (d Decimal) Sub(other Decimal) Decimal {
	return Decimal{value: d.value.Sub(other.value)}
}

// Mul returns the product of two Decimals.
func (d Decimal) Mul(other Decimal) Decimal {
	return Decimal{value: d.value.Mul(other.value)}
}

// Div returns the quotient of two Decimals.
func (d Decimal) Div(other Decimal) (Decimal, error) {
	if other.value.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	return Decimal{value: d.value.Div(other.value)}, nil
}

// Abs returns the absolute value of the Decimal.
func (d Decimal) Abs() Decimal {
	return Decimal{value: d.value.Abs()}
}

// Neg returns the negation of the Decimal.
func (d Decimal) Neg() Decimal {
	return Decimal{value: d.value.Neg()}
}

// IsZero returns true if the Decimal is zero.
func (d Decimal) IsZero() bool {
	return d.value.IsZero()
}

// IsNegative returns true if the Decimal is negative.
func (d Decimal) IsNegative() bool {
	return d.value.IsNegative()
}

// IsPositive returns true if the Decimal is positive.
func (d Decimal) IsPositive() bool {
	return d.value.IsPositive()
}

// GreaterThan returns true if d > other.
func (d Decimal) GreaterThan(other Decimal) bool {
	return d.value.GreaterThan(other.value)
}

// GreaterThanOrEqual returns true if d >= other.
func (d Decimal) GreaterThanOrEqual(other Decimal) bool {
	return d.value.GreaterThanOrEqual(other.value)
}

// LessThan returns true if d < other.
func (d Decimal) LessThan(other Decimal) bool {
	return d.value.LessThan(other.value)
}

// LessThanOrEqual returns true if d <= other.
func (d Decimal) LessThanOrEqual(other Decimal) bool {
	return d.value.LessThanOrEqual(other.value)
}

// Equal returns true if d == other.
func (d Decimal) Equal(other Decimal) bool {
	return d.value.Equal(other.value)
}

// Float64 returns the float64 representation of the Decimal.
// Use only for display or external APIs, never for calculations.
func (d Decimal) Float64() float64 {
	f, _ := d.value.Float64()
	return f
}

// String returns the string representation of the Decimal.
func (d Decimal) String() string {
	return d.value.String()
}

// Price represents a unit price of an asset. Prices cannot be negative.
type Price struct {
	value Decimal
}

// NewPrice creates a Price from a Decimal value. Returns error if negative.
func NewPrice(value Decimal) (Price, error) {
	if value.IsNegative() {
		return Price{}, ErrNegativePrice
	}
	return Price{value: value}, nil
}

// MustPrice creates a Price from a Decimal, panicking if invalid.
// Only use for known-valid constants in tests or initialization.
func MustPrice(value Decimal) Price {
	p, err := NewPrice(value)
	if err != nil {
		panic(err)
	}
	return p
}

// ZeroPrice returns a Price representing zero.
func ZeroPrice() Price {
	return Price{value: Zero()}
}

// Decimal returns the underlying Decimal value.
func (p Price) Decimal() Decimal {
	return p.value
}

// Mul returns the product of a Price and a Decimal.
func (p Price) Mul(factor Decimal) Price {
	return Price{value: p.value.Mul(factor)}
}

// GreaterThan returns true if p > other.
func (p Price) GreaterThan(other Price) bool {
	return p.value.GreaterThan(other.value)
}

// LessThan returns true if p < other.
func (p Price) LessThan(other Price) bool {
	return p.value.LessThan(other.value)
}

// Equal returns true if p == other.
func (p Price) Equal(other Price) bool {
	return p.value.Equal(other.value)
}

// IsZero returns true if the Price is zero.
func (p Price) IsZero() bool {
	return p.value.IsZero()
}

// String returns the string representation of the Price.
func (p Price) String() string {
	return p.value.String()
}

// Amount represents a non-negative quantity of an asset.
type Amount struct {
	value Decimal
}

// NewAmount creates an Amount from a Decimal value. Returns error if negative.
func NewAmount(value Decimal) (Amount, error) {
	if value.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}
	return Amount{value: value}, nil
}

// MustAmount creates an Amount from a Decimal, panicking if invalid.
// Only use for known-valid constants in tests or initialization.
func MustAmount(value Decimal) Amount {
	a, err := NewAmount(value)
	if err != nil {
		panic(err)
	}
	return a
}

// ZeroAmount returns an Amount representing zero.
func ZeroAmount() Amount {
	return Amount{value: Zero()}
}

// Decimal returns the underlying Decimal value.
func (a Amount) Decimal() Decimal {
	return a.value
}

// Add returns the sum of two Amounts.
func (a Amount) Add(other Amount) Amount {
	return Amount{value: a.value.Add(other.value)}
}

// Sub returns the difference of two Amounts. Returns error if negative.
func (a Amount) Sub(other Amount) (Amount, error) {
	result := a.value.Sub(other.value)
	if result.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}
	return Amount{value: result}, nil
}

// Mul returns the product of an Amount and a Decimal.
func (a Amount) Mul(factor Decimal) Amount {
	return Amount{value: a.value.Mul(factor)}
}

// GreaterThan returns true if a > other.
func (a Amount) GreaterThan(other Amount) bool {
	return a.value.GreaterThan(other.value)
}

// LessThan returns true if a < other.
func (a Amount) LessThan(other Amount) bool {
	return a.value.LessThan(other.value)
}

// Equal returns true if a == other.
func (a Amount) Equal(other Amount) bool {
	return a.value.Equal(other.value)
}

// IsZero returns true if the Amount is zero.
func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// String returns the string representation of the Amount.
func (a Amount) String() string {
	return a.value.String()
}

// Signed represents a quantity that is legitimately positive, negative, or
// zero: exposure delta, unrealized PnL, funding rate. It is a thin alias
// over Decimal kept as a distinct type so call sites document intent (a
// Signed parameter tells a reader "this can go negative by design", where a
// bare Decimal does not).
type Signed struct {
	value Decimal
}

// NewSigned wraps a Decimal as a Signed quantity.
func NewSigned(value Decimal) Signed {
	return Signed{value: value}
}

// ZeroSigned returns a Signed representing zero.
func ZeroSigned() Signed {
	return Signed{value: Zero()}
}

// Decimal returns the underlying Decimal value.
func (s Signed) Decimal() Decimal {
	return s.value
}

// Add returns the sum of two Signed values.
func (s Signed) Add(other Signed) Signed {
	return Signed{value: s.value.Add(other.value)}
}

// Sub returns the difference of two Signed values.
func (s Signed) Sub(other Signed) Signed {
	return Signed{value: s.value.Sub(other.value)}
}

// Abs returns the absolute value as a Signed (non-negative but same type).
func (s Signed) Abs() Signed {
	return Signed{value: s.value.Abs()}
}

// Neg returns the negation of s.
func (s Signed) Neg() Signed {
	return Signed{value: s.value.Neg()}
}

// IsZero returns true if s is zero.
func (s Signed) IsZero() bool {
	return s.value.IsZero()
}

// IsNegative returns true if s is negative.
func (s Signed) IsNegative() bool {
	return s.value.IsNegative()
}

// GreaterThan returns true if s > other.
func (s Signed) GreaterThan(other Signed) bool {
	return s.value.GreaterThan(other.value)
}

// LessThan returns true if s < other.
func (s Signed) LessThan(other Signed) bool {
	return s.value.LessThan(other.value)
}

// Equal returns true if s == other.
func (s Signed) Equal(other Signed) bool {
	return s.value.Equal(other.value)
}

// String returns the string representation of s.
func (s Signed) String() string {
	return s.value.String()
}

// FromAmount lifts a non-negative Amount into a Signed value.
func FromAmount(a Amount) Signed {
	return Signed{value: a.value}
}

// FromPrice lifts a non-negative Price into a Signed value.
func FromPrice(p Price) Signed {
	return Signed{value: p.value}
}
