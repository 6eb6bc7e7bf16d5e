// Package venue defines the VenueAdapter capability interface and its
// concrete Binance USDⓈ-M futures implementation. No other package issues
// HTTP to the venue directly; the connection is exclusively owned here.
package venue

import (
	"context"

	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
	"github.com/johnayoung/delta-hedge-bot/internal/model"
)

// PositionSide classifies the side of an open perpetual position.
type PositionSide string

const (
	SideNone  PositionSide = "none"
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

// Position is a snapshot of the adapter's current perpetual position.
type Position struct {
	Size           decimalx.Amount
	Side           PositionSide
	EntryPrice     *decimalx.Price
	MarkPrice      *decimalx.Price
	UnrealizedPnL  decimalx.Signed
	RealizedPnL    decimalx.Signed
	Margin         decimalx.Amount
	Leverage       decimalx.Decimal
}

// OrderInfo is the venue-reported state of a previously placed order.
type OrderInfo struct {
	OrderID   string
	Symbol    string
	Type      model.OrderType
	Side      model.OrderSide
	Price     *decimalx.Price
	Amount    decimalx.Amount
	Filled    decimalx.Amount
	Remaining decimalx.Amount
	Status    model.OrderStatus
}

// OrderBookLevel is one price/size pair in an order book side.
type OrderBookLevel struct {
	Price decimalx.Price
	Size  decimalx.Amount
}

// OrderBook is a symbol's current bid/ask depth.
type OrderBook struct {
	Symbol string
	Bids   []OrderBookLevel
	Asks   []OrderBookLevel
}

// Adapter is the capability set a hedge venue must expose. The core never
// depends on a concrete venue type, only on this interface, so a new venue
// is added by writing one more implementation, never by touching
// RiskCore/StrategyCore/Executor.
type Adapter interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	MarkPrice(ctx context.Context, symbol string) (decimalx.Price, error)
	FundingRate(ctx context.Context, symbol string) (decimalx.Signed, error)
	Balance(ctx context.Context, currency string) (decimalx.Decimal, error)
	Position(ctx context.Context, symbol string) (Position, error)

	SetLeverage(ctx context.Context, symbol string, leverage decimalx.Decimal) (bool, error)
	OpenShort(ctx context.Context, symbol string, size decimalx.Amount, leverage decimalx.Decimal) (model.Trade, error)
	CloseShort(ctx context.Context, symbol string, size decimalx.Amount) (model.Trade, error)

	OrderStatus(ctx context.Context, orderID, symbol string) (OrderInfo, error)
	CancelOrder(ctx context.Context, orderID, symbol string) (bool, error)

	OrderBook(ctx context.Context, symbol string, limit int) (OrderBook, error)
	RecentTrades(ctx context.Context, symbol string, limit int) ([]model.Trade, error)
}
