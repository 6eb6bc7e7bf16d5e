// Package model holds the shared domain types: pool parameters, position
// snapshots, hedge records, and trades. All monetary fields use
// internal/decimalx so no quantity ever passes through a binary float.
package model

import (
	"errors"
	"fmt"

	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
)

// PoolStatus classifies whether a pool currently permits hedging.
type PoolStatus string

const (
	PoolUnactivated PoolStatus = "unactivated"
	PoolUnlocked    PoolStatus = "unlocked"
	PoolLocked      PoolStatus = "locked"
)

// Valid reports whether s is a recognized PoolStatus.
func (s PoolStatus) Valid() bool {
	switch s {
	case PoolUnactivated, PoolUnlocked, PoolLocked:
		return true
	}
	return false
}

// HedgingAllowed reports whether the pool's status permits a new hedge.
// Unactivated and Locked pools still produce a snapshot but never a hedge.
func (s PoolStatus) HedgingAllowed() bool {
	return s == PoolUnlocked
}

var (
	ErrInvalidPoolParams = errors.New("invalid pool params")
)

// PoolParams are the static parameters of a pool epoch, fetched once and
// cached until explicitly invalidated.
type PoolParams struct {
	Vault0  string
	Vault1  string
	Account string

	EquilibriumReserve0 decimalx.Amount
	EquilibriumReserve1 decimalx.Amount

	PriceX decimalx.Amount
	PriceY decimalx.Amount

	ConcentrationX decimalx.Decimal
	ConcentrationY decimalx.Decimal

	Fee         decimalx.Decimal
	ProtocolFee decimalx.Decimal

	Token0Decimals int
	Token1Decimals int
}

// Validate enforces the range invariants from the data model: equilibrium
// reserves strictly positive, price_x/price_y in [1, 1e25], concentration
// in [0, 1], fees in [0, 1).
func (p PoolParams) Validate() error {
	if !p.EquilibriumReserve0.GreaterThan(decimalx.ZeroAmount()) {
		return fmt.Errorf("%w: equilibrium_reserve0 must be positive", ErrInvalidPoolParams)
	}
	if !p.EquilibriumReserve1.GreaterThan(decimalx.ZeroAmount()) {
		return fmt.Errorf("%w: equilibrium_reserve1 must be positive", ErrInvalidPoolParams)
	}
	one := decimalx.MustDecimalFromString("1")
	maxPrice := decimalx.MustDecimalFromString("1e25")
	if p.PriceX.Decimal().LessThan(one) || p.PriceX.Decimal().GreaterThan(maxPrice) {
		return fmt.Errorf("%w: price_x out of range", ErrInvalidPoolParams)
	}
	if p.PriceY.Decimal().LessThan(one) || p.PriceY.Decimal().GreaterThan(maxPrice) {
		return fmt.Errorf("%w: price_y out of range", ErrInvalidPoolParams)
	}
	zero := decimalx.Zero()
	if p.ConcentrationX.LessThan(zero) || p.ConcentrationX.GreaterThan(one) {
		return fmt.Errorf("%w: concentration_x out of range", ErrInvalidPoolParams)
	}
	if p.ConcentrationY.LessThan(zero) || p.ConcentrationY.GreaterThan(one) {
		return fmt.Errorf("%w: concentration_y out of range", ErrInvalidPoolParams)
	}
	if p.Fee.LessThan(zero) || !p.Fee.LessThan(one) {
		return fmt.Errorf("%w: fee out of range", ErrInvalidPoolParams)
	}
	if p.ProtocolFee.LessThan(zero) || !p.ProtocolFee.LessThan(one) {
		return fmt.Errorf("%w: protocol_fee out of range", ErrInvalidPoolParams)
	}
	return nil
}

// EquilibriumPrice returns price_x / price_y.
func (p PoolParams) EquilibriumPrice() (decimalx.Decimal, error) {
	return p.PriceX.Decimal().Div(p.PriceY.Decimal())
}

// IsConcentrated reports whether either side carries non-zero concentration.
func (p PoolParams) IsConcentrated() bool {
	return p.ConcentrationX.IsPositive() || p.ConcentrationY.IsPositive()
}

// IsDesynchronized applies the per-token deviation check: the pool is
// desynchronized when either reserve deviates from its equilibrium value by
// more than thresholdPercent. Desync is warning-only and never blocks
// hedging on its own.
func IsDesynchronized(reserve0, reserve1 decimalx.Amount, params PoolParams, thresholdPercent decimalx.Decimal) bool {
	return deviationExceeds(reserve0, params.EquilibriumReserve0, thresholdPercent) ||
		deviationExceeds(reserve1, params.EquilibriumReserve1, thresholdPercent)
}

func deviationExceeds(reserve, equilibrium decimalx.Amount, thresholdPercent decimalx.Decimal) bool {
	if equilibrium.IsZero() {
		return false
	}
	hundred := decimalx.NewDecimal(100)
	diff := reserve.Decimal().Sub(equilibrium.Decimal()).Abs()
	ratio, err := diff.Div(equilibrium.Decimal())
	if err != nil {
		return false
	}
	deviationPercent := ratio.Mul(hundred)
	return deviationPercent.GreaterThan(thresholdPercent)
}
