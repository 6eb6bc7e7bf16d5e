// Package executor implements Executor: the translation of one hedge
// decision into a venue order, the resulting Trade, and the HedgeRecord
// that summarizes the attempt whether it succeeded or failed.
package executor

import (
	"context"

	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
	"github.com/johnayoung/delta-hedge-bot/internal/logging"
	"github.com/johnayoung/delta-hedge-bot/internal/model"
	"github.com/johnayoung/delta-hedge-bot/internal/venue"
)

// RiskGate is the subset of risk.Core the Executor consults while placing a
// trade: slippage and leverage, not the hedge decision itself (that already
// happened in StrategyCore before Execute was called).
type RiskGate interface {
	CheckSlippage(expected, market decimalx.Price) bool
	CalcLeverage(size decimalx.Amount, balance decimalx.Decimal, price decimalx.Price) decimalx.Decimal
	RecordTrade(at decimalx.Time)
}

// Persister is the subset of ledger.Store the Executor writes hedge and
// trade records through. Nil disables persistence. SaveHedgeAndTrade writes
// both in one transaction so a crash between the two can never leave a
// Trade with no matching HedgeRecord.
type Persister interface {
	SaveHedgeAndTrade(ctx context.Context, h model.HedgeRecord, t model.Trade) error
}

// Executor places hedge trades against one venue and records the outcome.
type Executor struct {
	venue     venue.Adapter
	risk      RiskGate
	ledger    Persister
	log       *logging.Handle
	symbol    string
	venueName string
}

// New constructs an Executor bound to a single venue and symbol.
func New(v venue.Adapter, r RiskGate, l Persister, log *logging.Handle, symbol, venueName string) *Executor {
	return &Executor{venue: v, risk: r, ledger: l, log: log, symbol: symbol, venueName: venueName}
}

// Execute carries out one hedge decision.
//
// hedgeSize's sign encodes direction: positive opens/increases the short,
// negative closes/reduces it. expectedPrice is the baseline price the
// caller supplies (StrategyCore passes the mark price it read on its
// previous hedge attempt, or zero on the first); passing it explicitly,
// rather than re-reading the mark price twice and comparing it to itself,
// is what makes the slippage check meaningful.
//
// Steps: read the current mark price, check it against expectedPrice for
// slippage, read account balance, size leverage, place the order, compute
// the post-trade delta, persist the trade and hedge record, and record the
// trade for rate limiting. An invalid hedge size, or a failure of any step
// up to and including order placement, produces a HedgeRecord with
// Success=false, Price=0, and DeltaAfter equal to DeltaBefore; such a
// failed record is returned but not persisted. A persistence failure after
// the order is only logged and the record stays successful.
func (e *Executor) Execute(ctx context.Context, snapshot model.PositionSnapshot, hedgeSize decimalx.Signed, expectedPrice decimalx.Price) (model.HedgeRecord, error) {
	deltaBefore := snapshot.Delta()
	action := model.HedgeOpenShort
	if hedgeSize.IsNegative() {
		action = model.HedgeCloseShort
	}

	absSize, err := decimalx.NewAmount(hedgeSize.Abs().Decimal())
	if err != nil {
		return e.failedRecord(action, absSize, deltaBefore, "invalid hedge size: "+err.Error()), nil
	}

	e.log.Info(logging.TagCalculatedHedge, string(action)+" "+absSize.String())

	markPrice, err := e.venue.MarkPrice(ctx, e.symbol)
	if err != nil {
		e.log.Error(logging.TagVenue, "failed to fetch mark price", err)
		return e.failedRecord(action, absSize, deltaBefore, err.Error()), nil
	}

	if !e.risk.CheckSlippage(expectedPrice, markPrice) {
		e.log.Warn(logging.TagRisk, "slippage check failed, aborting hedge")
		return e.failedRecord(action, absSize, deltaBefore, "slippage check failed"), nil
	}

	balance, err := e.venue.Balance(ctx, "USDT")
	if err != nil {
		e.log.Error(logging.TagVenue, "failed to fetch balance", err)
		return e.failedRecord(action, absSize, deltaBefore, err.Error()), nil
	}

	leverage := e.risk.CalcLeverage(absSize, balance, markPrice)

	var trade model.Trade
	if hedgeSize.IsNegative() {
		trade, err = e.venue.CloseShort(ctx, e.symbol, absSize)
	} else {
		trade, err = e.venue.OpenShort(ctx, e.symbol, absSize, leverage)
	}
	if err != nil {
		e.log.Error(logging.TagVenue, "order placement failed", err)
		return e.failedRecord(action, absSize, deltaBefore, err.Error()), nil
	}

	newShortSize := snapshot.ShortSize
	if hedgeSize.IsNegative() {
		newShortSize, err = newShortSize.Sub(absSize)
		if err != nil {
			newShortSize = decimalx.ZeroAmount()
		}
	} else {
		newShortSize = newShortSize.Add(absSize)
	}
	deltaAfter := decimalx.NewSigned(snapshot.Reserve1.Decimal().Sub(newShortSize.Decimal()))

	record := model.HedgeRecord{
		Action:      action,
		Size:        absSize,
		Price:       trade.Price,
		Timestamp:   trade.Timestamp,
		DeltaBefore: deltaBefore,
		DeltaAfter:  deltaAfter,
		Leverage:    leverage,
		Venue:       e.venueName,
		OrderID:     trade.OrderID,
		Success:     true,
	}

	if e.ledger != nil {
		if err := e.ledger.SaveHedgeAndTrade(ctx, record, trade); err != nil {
			e.log.Warn(logging.TagDatabase, "failed to persist trade and hedge record, continuing")
		}
	}

	e.risk.RecordTrade(trade.Timestamp)

	e.log.Info(logging.TagTradeExecuted, string(action)+" "+absSize.String()+" @ "+trade.Price.String())

	return record, nil
}

func (e *Executor) failedRecord(action model.HedgeAction, size decimalx.Amount, deltaBefore decimalx.Signed, errMsg string) model.HedgeRecord {
	return model.HedgeRecord{
		Action:       action,
		Size:         size,
		Price:        decimalx.ZeroPrice(),
		Timestamp:    decimalx.Now(),
		DeltaBefore:  deltaBefore,
		DeltaAfter:   deltaBefore,
		Success:      false,
		ErrorMessage: errMsg,
	}
}

// EmergencyCloseAll closes the venue's open short on this symbol for its
// full size. A long or flat position is left as is and reported as a
// successful no-op.
func (e *Executor) EmergencyCloseAll(ctx context.Context) (model.HedgeRecord, error) {
	pos, err := e.venue.Position(ctx, e.symbol)
	if err != nil {
		e.log.Error(logging.TagVenue, "emergency close failed to read position", err)
		return model.HedgeRecord{}, err
	}
	if pos.Side != venue.SideShort || pos.Size.IsZero() {
		return model.HedgeRecord{Success: true}, nil
	}

	trade, err := e.venue.CloseShort(ctx, e.symbol, pos.Size)
	if err != nil {
		e.log.Error(logging.TagVenue, "emergency close order failed", err)
		return model.HedgeRecord{Success: false, ErrorMessage: err.Error()}, err
	}

	e.log.Warn(logging.TagStrategy, "emergency closed "+pos.Size.String()+" short at "+trade.Price.String())

	record := model.HedgeRecord{
		Action:    model.HedgeCloseShort,
		Size:      pos.Size,
		Price:     trade.Price,
		Timestamp: trade.Timestamp,
		Venue:     e.venueName,
		OrderID:   trade.OrderID,
		Success:   true,
	}
	if e.ledger != nil {
		if err := e.ledger.SaveHedgeAndTrade(ctx, record, trade); err != nil {
			e.log.Warn(logging.TagDatabase, "failed to persist emergency close trade and hedge record, continuing")
		}
	}
	return record, nil
}
