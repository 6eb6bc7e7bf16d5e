package model

import (
	"fmt"

	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
)

// HedgeAction classifies the direction of a hedge.
type HedgeAction string

const (
	HedgeOpenShort   HedgeAction = "open_short"
	HedgeCloseShort  HedgeAction = "close_short"
	HedgeAdjustShort HedgeAction = "adjust_short"
)

// HedgeRecord is the outcome of one Executor.Execute call, successful or
// failed. Exactly one Trade shares its OrderID when Success is true.
type HedgeRecord struct {
	Action       HedgeAction
	Size         decimalx.Amount
	Price        decimalx.Price
	Timestamp    decimalx.Time
	DeltaBefore  decimalx.Signed
	DeltaAfter   decimalx.Signed
	Leverage     decimalx.Decimal
	Venue        string
	OrderID      string
	GasCost      *decimalx.Decimal
	Success      bool
	ErrorMessage string
}

// Notional returns size * price.
func (h HedgeRecord) Notional() decimalx.Decimal {
	return h.Size.Decimal().Mul(h.Price.Decimal())
}

// DeltaReduction returns |delta_before| - |delta_after|. Non-negative for
// every successful hedge: hedging never increases absolute exposure.
func (h HedgeRecord) DeltaReduction() decimalx.Decimal {
	return h.DeltaBefore.Abs().Decimal().Sub(h.DeltaAfter.Abs().Decimal())
}

// MarshalRecord converts the hedge record to a plain map.
func (h HedgeRecord) MarshalRecord() map[string]any {
	rec := map[string]any{
		"action":        string(h.Action),
		"size":          h.Size.String(),
		"price":         h.Price.String(),
		"timestamp_us":  h.Timestamp.UnixMicro(),
		"delta_before":  h.DeltaBefore.String(),
		"delta_after":   h.DeltaAfter.String(),
		"leverage":      h.Leverage.String(),
		"venue":         h.Venue,
		"order_id":      h.OrderID,
		"success":       h.Success,
		"error_message": h.ErrorMessage,
	}
	if h.GasCost != nil {
		rec["gas_cost"] = h.GasCost.String()
	}
	return rec
}

// UnmarshalHedgeRecord rebuilds a HedgeRecord from a record produced by
// MarshalRecord.
func UnmarshalHedgeRecord(rec map[string]any) (HedgeRecord, error) {
	var h HedgeRecord
	action, _ := rec["action"].(string)
	size, err := decimalFieldAmount(rec, "size")
	if err != nil {
		return h, err
	}
	priceDec, err := decimalFieldString(rec, "price")
	if err != nil {
		return h, err
	}
	price, err := decimalx.NewPrice(priceDec)
	if err != nil {
		return h, err
	}
	deltaBefore, err := decimalFieldString(rec, "delta_before")
	if err != nil {
		return h, err
	}
	deltaAfter, err := decimalFieldString(rec, "delta_after")
	if err != nil {
		return h, err
	}
	leverage, err := decimalFieldString(rec, "leverage")
	if err != nil {
		return h, err
	}
	us, ok := rec["timestamp_us"].(int64)
	if !ok {
		return h, fmt.Errorf("missing or invalid timestamp_us")
	}
	venue, _ := rec["venue"].(string)
	orderID, _ := rec["order_id"].(string)
	success, _ := rec["success"].(bool)
	errMsg, _ := rec["error_message"].(string)

	h = HedgeRecord{
		Action:       HedgeAction(action),
		Size:         size,
		Price:        price,
		Timestamp:    decimalx.Unix(0, us*1000),
		DeltaBefore:  decimalx.NewSigned(deltaBefore),
		DeltaAfter:   decimalx.NewSigned(deltaAfter),
		Leverage:     leverage,
		Venue:        venue,
		OrderID:      orderID,
		Success:      success,
		ErrorMessage: errMsg,
	}
	if gc, ok := rec["gas_cost"].(string); ok {
		d, err := decimalx.NewDecimalFromString(gc)
		if err == nil {
			h.GasCost = &d
		}
	}
	return h, nil
}

func decimalFieldString(rec map[string]any, key string) (decimalx.Decimal, error) {
	str, ok := rec[key].(string)
	if !ok {
		return decimalx.Zero(), fmt.Errorf("missing or invalid field %q", key)
	}
	return decimalx.NewDecimalFromString(str)
}
