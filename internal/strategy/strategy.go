// Package strategy implements StrategyCore: the per-snapshot orchestration
// that decides whether to hedge, enforces the minimum interval between
// hedges, and delegates the actual trade to an Executor.
package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
	"github.com/johnayoung/delta-hedge-bot/internal/logging"
	"github.com/johnayoung/delta-hedge-bot/internal/model"
)

// RiskDecider is the subset of risk.Core StrategyCore consults to decide
// whether a snapshot warrants a hedge.
type RiskDecider interface {
	ShouldHedge(snapshot model.PositionSnapshot, force bool, now decimalx.Time) (bool, decimalx.Signed)
	EmergencyStopCheck(cumulativeLoss decimalx.Decimal) bool
}

// HedgeExecutor is the subset of executor.Executor StrategyCore drives.
type HedgeExecutor interface {
	Execute(ctx context.Context, snapshot model.PositionSnapshot, hedgeSize decimalx.Signed, expectedPrice decimalx.Price) (model.HedgeRecord, error)
	EmergencyCloseAll(ctx context.Context) (model.HedgeRecord, error)
}

// MarkPriceSource supplies the mark price that StrategyCore reads on each
// hedge attempt and keeps as the slippage baseline for the next attempt.
type MarkPriceSource interface {
	MarkPrice(ctx context.Context, symbol string) (decimalx.Price, error)
}

// Stats reports StrategyCore's running hedge counters.
type Stats struct {
	TotalHedges      int
	SuccessfulHedges int
	FailedHedges     int
	LastHedgeTime    decimalx.Time
	MinHedgeInterval decimalx.Duration
}

// SuccessRate returns the percentage (0-100) of attempted hedges that
// succeeded, or 0 if none have been attempted yet.
func (s Stats) SuccessRate() decimalx.Decimal {
	if s.TotalHedges == 0 {
		return decimalx.Zero()
	}
	successful := decimalx.NewDecimal(int64(s.SuccessfulHedges))
	total := decimalx.NewDecimal(int64(s.TotalHedges))
	rate, err := successful.Div(total)
	if err != nil {
		return decimalx.Zero()
	}
	return rate.Mul(decimalx.NewDecimal(100))
}

// Core is StrategyCore. One Core is bound to one pool/venue pair and
// processes snapshots strictly one at a time: ProcessSnapshot is not
// reentrant-safe, which is fine because the aggregator's tick loop already
// awaits each callback to completion before producing the next snapshot.
type Core struct {
	risk     RiskDecider
	executor HedgeExecutor
	mark     MarkPriceSource
	log      *logging.Handle
	symbol   string

	mu               sync.Mutex
	lastHedgeTime    decimalx.Time
	minHedgeInterval decimalx.Duration
	totalHedges      int
	successfulHedges int
	failedHedges     int
	cumulativeLoss   decimalx.Decimal

	// lastMarkPrice is the mark price read during the previous hedge attempt,
	// used as the slippage baseline for the next hedge so CheckSlippage never
	// compares a live read against itself. The mark is only read when a hedge
	// is attempted, so this is zero until the first hedge attempt.
	lastMarkPrice decimalx.Price
}

// New constructs a Core with the default 30-second minimum hedge interval.
func New(risk RiskDecider, exec HedgeExecutor, mark MarkPriceSource, log *logging.Handle, symbol string) *Core {
	return &Core{
		risk:             risk,
		executor:         exec,
		mark:             mark,
		log:              log,
		symbol:           symbol,
		lastHedgeTime:    decimalx.Now(),
		minHedgeInterval: decimalx.Seconds(30),
		cumulativeLoss:   decimalx.Zero(),
		lastMarkPrice:    decimalx.ZeroPrice(),
	}
}

// ProcessSnapshot is StrategyCore's per-tick entry point: decide, gate on
// timing, execute. Returns nil (not an error) when no hedge was warranted
// or the minimum interval has not elapsed, matching the "no-op" scenario.
func (c *Core) ProcessSnapshot(ctx context.Context, snapshot model.PositionSnapshot) (*model.HedgeRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Info(logging.TagStrategy, fmt.Sprintf("processing snapshot - delta: %s", snapshot.Delta().String()))

	if !snapshot.Status.HedgingAllowed() {
		c.log.Debug(logging.TagStrategy, fmt.Sprintf("skipping hedge - pool status %q does not permit hedging", snapshot.Status))
		return nil, nil
	}

	now := decimalx.Now()
	shouldHedge, hedgeSize := c.risk.ShouldHedge(snapshot, false, now)
	if !shouldHedge {
		c.log.Debug(logging.TagStrategy, "no hedge required - within threshold")
		return nil, nil
	}

	elapsed := now.Sub(c.lastHedgeTime)
	if !elapsed.GreaterThan(c.minHedgeInterval) {
		c.log.Debug(logging.TagStrategy, fmt.Sprintf("skipping hedge - too soon (%.1fs < %s)", elapsed.Seconds(), c.minHedgeInterval.String()))
		return nil, nil
	}

	record, err := c.executeHedge(ctx, snapshot, hedgeSize)
	if err != nil {
		return nil, err
	}

	c.totalHedges++
	if record.Success {
		c.lastHedgeTime = now
		c.successfulHedges++
	} else {
		c.failedHedges++
	}

	return &record, nil
}

// executeHedge fetches the current mark price and caches it for the next
// hedge attempt, but hands Execute the price cached from the *previous*
// hedge attempt (decimalx.ZeroPrice() on the very first hedge) as the
// slippage baseline.
// Comparing a live read against itself would make CheckSlippage a tautology.
func (c *Core) executeHedge(ctx context.Context, snapshot model.PositionSnapshot, hedgeSize decimalx.Signed) (model.HedgeRecord, error) {
	expectedPrice := c.lastMarkPrice

	currentMark, err := c.mark.MarkPrice(ctx, c.symbol)
	if err != nil {
		c.log.Error(logging.TagVenue, "failed to fetch mark price for hedge", err)
		return model.HedgeRecord{}, err
	}
	c.lastMarkPrice = currentMark

	return c.executor.Execute(ctx, snapshot, hedgeSize, expectedPrice)
}

// RecordRealizedLoss accumulates a realized loss and reports whether the
// cumulative loss has crossed the emergency stop-loss threshold.
func (c *Core) RecordRealizedLoss(loss decimalx.Decimal) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cumulativeLoss = c.cumulativeLoss.Add(loss)
	return c.risk.EmergencyStopCheck(c.cumulativeLoss)
}

// EmergencyCloseAll closes the venue's open short immediately (a long or
// flat position is left as is), bypassing the minimum hedge interval. Holds the same lock ProcessSnapshot
// uses so an in-flight tick cannot race an emergency close.
func (c *Core) EmergencyCloseAll(ctx context.Context) (model.HedgeRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Warn(logging.TagStrategy, "EMERGENCY: closing all positions")
	record, err := c.executor.EmergencyCloseAll(ctx)
	if err == nil {
		c.totalHedges++
		if record.Success {
			c.successfulHedges++
			c.lastHedgeTime = decimalx.Now()
		} else {
			c.failedHedges++
		}
	}
	return record, err
}

// Stats returns a snapshot of the running hedge counters.
func (c *Core) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		TotalHedges:      c.totalHedges,
		SuccessfulHedges: c.successfulHedges,
		FailedHedges:     c.failedHedges,
		LastHedgeTime:    c.lastHedgeTime,
		MinHedgeInterval: c.minHedgeInterval,
	}
}

// UpdateParameters adjusts the minimum hedge interval at runtime. Other
// tunables (hedge threshold, min/max hedge size) live in risk.Limits and
// are updated by reconstructing that struct, not through this method.
func (c *Core) UpdateParameters(minHedgeInterval decimalx.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minHedgeInterval = minHedgeInterval
	c.log.Info(logging.TagStrategy, "updated min_hedge_interval to "+minHedgeInterval.String())
}
