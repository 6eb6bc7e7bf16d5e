// Package risk implements RiskCore: pure, I/O-free decision functions over
// a PositionSnapshot and the active configuration. Nothing in this package
// talks to the chain, the venue, or the ledger.
package risk

import (
	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
	"github.com/johnayoung/delta-hedge-bot/internal/logging"
	"github.com/johnayoung/delta-hedge-bot/internal/model"
)

// Limits bundles the configuration values RiskCore's decision functions
// consume, so callers don't have to pass seven scalar arguments around.
type Limits struct {
	MinHedgeSize       decimalx.Amount
	HedgeThreshold     decimalx.Amount
	MaxPositionSize    decimalx.Amount
	MaxSlippagePercent decimalx.Decimal
	DefaultLeverage    decimalx.Decimal
	MaxTradesPerHour   int
	EmergencyStopLoss  decimalx.Amount
}

// Core holds the rate limiter's sliding window alongside the stateless
// decision functions; the window is the only state RiskCore carries, and it
// is never persisted to the ledger.
type Core struct {
	limits Limits
	log    *logging.Handle

	tradeTimestamps []decimalx.Time
}

// New constructs a Core with the given limits.
func New(limits Limits, log *logging.Handle) *Core {
	return &Core{limits: limits, log: log}
}

// ShouldHedge decides whether snapshot warrants a hedge and, if so, the
// signed size to hedge by. The sign of the returned size encodes direction:
// positive means open more short, negative means close some short.
func (c *Core) ShouldHedge(snapshot model.PositionSnapshot, force bool, now decimalx.Time) (bool, decimalx.Signed) {
	delta := snapshot.Delta()
	absDelta := delta.Abs()

	if !force && !absDelta.Decimal().GreaterThan(c.limits.HedgeThreshold.Decimal()) {
		return false, decimalx.ZeroSigned()
	}
	if absDelta.Decimal().LessThan(c.limits.MinHedgeSize.Decimal()) {
		return false, decimalx.ZeroSigned()
	}
	if absDelta.Decimal().GreaterThan(c.limits.MaxPositionSize.Decimal()) {
		c.log.Warn(logging.TagRisk, "delta exceeds max position size, skipping hedge")
		return false, decimalx.ZeroSigned()
	}
	if !c.checkRateLimit(now) {
		c.log.Warn(logging.TagRisk, "rate limit reached, skipping hedge")
		return false, decimalx.ZeroSigned()
	}
	return true, delta
}

// CalcLeverage sizes leverage for a hedge of the given size, clamped to
// [1, default_leverage]. Balance at or below zero forces leverage 1.
func (c *Core) CalcLeverage(size decimalx.Amount, balance decimalx.Decimal, price decimalx.Price) decimalx.Decimal {
	one := decimalx.NewDecimal(1)
	if !balance.IsPositive() {
		return one
	}
	notional := size.Decimal().Mul(price.Decimal())
	raw, err := notional.Div(balance)
	if err != nil {
		return one
	}
	if raw.LessThan(one) {
		return one
	}
	if raw.GreaterThan(c.limits.DefaultLeverage) {
		return c.limits.DefaultLeverage
	}
	return raw
}

// CheckSlippage reports whether market is within max_slippage_percent of
// expected. An expected price of zero always fails: there is nothing to
// compare against.
func (c *Core) CheckSlippage(expected, market decimalx.Price) bool {
	if expected.IsZero() {
		return false
	}
	diff := market.Decimal().Sub(expected.Decimal()).Abs()
	ratio, err := diff.Div(expected.Decimal())
	if err != nil {
		return false
	}
	slippagePercent := ratio.Mul(decimalx.NewDecimal(100))
	return !slippagePercent.GreaterThan(c.limits.MaxSlippagePercent)
}

// checkRateLimit purges timestamps older than one hour and reports whether
// another trade is allowed within the sliding window.
func (c *Core) checkRateLimit(now decimalx.Time) bool {
	c.purgeOldTrades(now)
	return len(c.tradeTimestamps) < c.limits.MaxTradesPerHour
}

func (c *Core) purgeOldTrades(now decimalx.Time) {
	cutoff := decimalx.NewTime(now.Time().Add(-decimalx.Hours(1).Duration()))
	filtered := make([]decimalx.Time, 0, len(c.tradeTimestamps))
	for _, ts := range c.tradeTimestamps {
		if ts.After(cutoff) {
			filtered = append(filtered, ts)
		}
	}
	c.tradeTimestamps = filtered
}

// RecordTrade appends a successful hedge's timestamp to the rate-limiting
// window. Called by the Executor only after a successful venue trade.
func (c *Core) RecordTrade(at decimalx.Time) {
	c.tradeTimestamps = append(c.tradeTimestamps, at)
}

// EmergencyStopCheck reports whether cumulative realized losses have
// crossed the configured stop-loss threshold.
func (c *Core) EmergencyStopCheck(cumulativeLoss decimalx.Decimal) bool {
	return cumulativeLoss.GreaterThan(c.limits.EmergencyStopLoss.Decimal())
}

// ValidateMarketConditions is an advisory check on funding rate: it never
// blocks trading, only logs a warning when funding looks unusually rich.
func (c *Core) ValidateMarketConditions(fundingRate decimalx.Signed, maxFundingRatePercent decimalx.Decimal) bool {
	if fundingRate.Abs().Decimal().GreaterThan(maxFundingRatePercent) {
		c.log.Warn(logging.TagRisk, "funding rate exceeds configured threshold, continuing to trade")
		return false
	}
	return true
}

// RiskMetrics is a read-only diagnostic view of a snapshot's exposure; it
// does not gate hedging decisions.
type RiskMetrics struct {
	LongExposure  decimalx.Decimal
	ShortExposure decimalx.Decimal
	NetExposure   decimalx.Signed
	RiskScore     decimalx.Decimal
}

// PositionRisk computes RiskMetrics for a snapshot at the given mark price.
func PositionRisk(snapshot model.PositionSnapshot, mark decimalx.Price) RiskMetrics {
	longExposure := snapshot.Reserve1.Decimal().Mul(mark.Decimal())
	shortExposure := snapshot.ShortSize.Decimal().Mul(mark.Decimal())
	net := snapshot.Delta()
	riskScore := net.Abs().Decimal()
	return RiskMetrics{
		LongExposure:  longExposure,
		ShortExposure: shortExposure,
		NetExposure:   net,
		RiskScore:     riskScore,
	}
}
