package decimalx

import "testing"

func TestNewAmountRejectsNegative(t *testing.T) {
	neg := NewDecimal(-1)
	if _, err := NewAmount(neg); err != ErrNegativeAmount {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestNewPriceRejectsNegative(t *testing.T) {
	neg := NewDecimal(-1)
	if _, err := NewPrice(neg); err != ErrNegativePrice {
		t.Fatalf("expected ErrNegativePrice, got %v", err)
	}
}

func TestAmountSubRejectsNegativeResult(t *testing.T) {
	a := MustAmount(NewDecimal(1))
	b := MustAmount(NewDecimal(2))
	if _, err := a.Sub(b); err != ErrNegativeAmount {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestAmountSubAllowsZero(t *testing.T) {
	a := MustAmount(NewDecimal(5))
	result, err := a.Sub(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsZero() {
		t.Fatalf("expected zero, got %s", result.String())
	}
}

func TestDivByZero(t *testing.T) {
	if _, err := NewDecimal(1).Div(Zero()); err != ErrDivisionByZero {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
}

func TestSignedCanBeNegative(t *testing.T) {
	s := NewSigned(NewDecimal(-5))
	if !s.IsNegative() {
		t.Fatal("expected signed value to be negative")
	}
	if s.Abs().Decimal().String() != "5" {
		t.Fatalf("expected abs 5, got %s", s.Abs().Decimal().String())
	}
}

func TestFromAmountAndFromPriceLiftToSigned(t *testing.T) {
	amt := MustAmount(NewDecimal(3))
	if s := FromAmount(amt); s.IsNegative() {
		t.Fatal("lifted amount should not be negative")
	}
	price := MustPrice(NewDecimal(7))
	if s := FromPrice(price); !s.Equal(NewSigned(NewDecimal(7))) {
		t.Fatalf("expected 7, got %s", s.String())
	}
}

func TestMustAmountPanicsOnNegative(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustAmount(NewDecimal(-1))
}

func TestNewDecimalFromStringRoundTrip(t *testing.T) {
	d, err := NewDecimalFromString("123.456789012345678901")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "123.456789012345678901" {
		t.Fatalf("precision lost: got %s", d.String())
	}
}

func TestNewDecimalFromStringRejectsGarbage(t *testing.T) {
	if _, err := NewDecimalFromString("not-a-number"); err == nil {
		t.Fatal("expected error for invalid decimal string")
	}
}
