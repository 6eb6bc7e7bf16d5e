package model

import (
	"fmt"

	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
)

// OrderSide is the direction of a venue order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType is the venue order type. The core only ever places Market
// orders; the other values exist because the venue protocol supports them
// and OrderStatus/OrderInfo need to represent whatever the venue reports.
type OrderType string

const (
	OrderMarket    OrderType = "market"
	OrderLimit     OrderType = "limit"
	OrderStop      OrderType = "stop"
	OrderStopLimit OrderType = "stop_limit"
)

// OrderStatus is the venue-reported lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusOpen      OrderStatus = "open"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusFailed    OrderStatus = "failed"
)

// Trade is a venue-level fill. Every successful HedgeRecord has exactly one
// Trade whose OrderID matches.
type Trade struct {
	Symbol      string
	Side        OrderSide
	OrderType   OrderType
	Size        decimalx.Amount
	Price       decimalx.Price
	Timestamp   decimalx.Time
	OrderID     string
	Status      OrderStatus
	Fee         *decimalx.Decimal
	FeeCurrency string
	Venue       string
}

// Notional returns size * price.
func (t Trade) Notional() decimalx.Decimal {
	return t.Size.Decimal().Mul(t.Price.Decimal())
}

// TotalCost returns notional plus fee, when a fee is present.
func (t Trade) TotalCost() decimalx.Decimal {
	n := t.Notional()
	if t.Fee != nil {
		return n.Add(*t.Fee)
	}
	return n
}

// MarshalRecord converts the trade to a plain map.
func (t Trade) MarshalRecord() map[string]any {
	rec := map[string]any{
		"symbol":       t.Symbol,
		"side":         string(t.Side),
		"order_type":   string(t.OrderType),
		"size":         t.Size.String(),
		"price":        t.Price.String(),
		"timestamp_us": t.Timestamp.UnixMicro(),
		"order_id":     t.OrderID,
		"status":       string(t.Status),
		"venue":        t.Venue,
		"fee_currency": t.FeeCurrency,
	}
	if t.Fee != nil {
		rec["fee"] = t.Fee.String()
	}
	return rec
}

// UnmarshalTrade rebuilds a Trade from a record produced by MarshalRecord.
func UnmarshalTrade(rec map[string]any) (Trade, error) {
	var t Trade
	size, err := decimalFieldAmount(rec, "size")
	if err != nil {
		return t, err
	}
	priceDec, err := decimalFieldString(rec, "price")
	if err != nil {
		return t, err
	}
	price, err := decimalx.NewPrice(priceDec)
	if err != nil {
		return t, err
	}
	us, ok := rec["timestamp_us"].(int64)
	if !ok {
		return t, fmt.Errorf("missing or invalid timestamp_us")
	}
	symbol, _ := rec["symbol"].(string)
	side, _ := rec["side"].(string)
	orderType, _ := rec["order_type"].(string)
	orderID, _ := rec["order_id"].(string)
	status, _ := rec["status"].(string)
	venue, _ := rec["venue"].(string)
	feeCurrency, _ := rec["fee_currency"].(string)

	t = Trade{
		Symbol:      symbol,
		Side:        OrderSide(side),
		OrderType:   OrderType(orderType),
		Size:        size,
		Price:       price,
		Timestamp:   decimalx.Unix(0, us*1000),
		OrderID:     orderID,
		Status:      OrderStatus(status),
		Venue:       venue,
		FeeCurrency: feeCurrency,
	}
	if fee, ok := rec["fee"].(string); ok {
		d, err := decimalx.NewDecimalFromString(fee)
		if err == nil {
			t.Fee = &d
		}
	}
	return t, nil
}
