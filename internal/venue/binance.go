package venue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/johnayoung/delta-hedge-bot/internal/apperrors"
	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
	"github.com/johnayoung/delta-hedge-bot/internal/logging"
	"github.com/johnayoung/delta-hedge-bot/internal/model"
)

// BinanceFutures implements Adapter against Binance USDⓈ-M perpetual
// futures. It is the only place in the repository that knows Binance's
// wire symbol format differs from the `BASE/QUOTE:MARGIN` format the rest
// of the system uses.
type BinanceFutures struct {
	apiKey    string
	apiSecret string
	testnet   bool
	log       *logging.Handle

	mu        sync.Mutex
	client    *futures.Client
	connected bool
}

// NewBinanceFutures constructs an unconnected adapter. Call Connect before
// any other method.
func NewBinanceFutures(apiKey, apiSecret string, testnet bool, log *logging.Handle) *BinanceFutures {
	return &BinanceFutures{apiKey: apiKey, apiSecret: apiSecret, testnet: testnet, log: log}
}

// binanceSymbol strips the `:MARGIN` suffix from a `BASE/QUOTE:MARGIN`
// symbol and removes the `/` separator, matching Binance's wire format
// (e.g. "ETH/USDT:USDT" -> "ETHUSDT"). This normalization is venue-specific
// and never leaks outside this file.
func binanceSymbol(symbol string) string {
	base := symbol
	if idx := strings.Index(base, ":"); idx != -1 {
		base = base[:idx]
	}
	return strings.ReplaceAll(base, "/", "")
}

func (b *BinanceFutures) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	futures.UseTestnet = b.testnet
	client := futures.NewClient(b.apiKey, b.apiSecret)

	serverTime, err := client.NewServerTimeService().Do(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrTransient, "binance server time sync failed", err)
	}
	client.TimeOffset = time.Now().UnixMilli() - serverTime

	if _, err := client.NewGetBalanceService().Do(ctx); err != nil {
		return apperrors.Wrap(apperrors.ErrTransient, "binance connect balance check failed", err)
	}

	b.client = client
	b.connected = true
	b.log.Info(logging.TagVenue, "connected to binance futures")
	return nil
}

func (b *BinanceFutures) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	b.client = nil
	b.log.Info(logging.TagVenue, "disconnected from binance futures")
	return nil
}

func (b *BinanceFutures) ensureConnected() (*futures.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected || b.client == nil {
		return nil, apperrors.ErrNotConnected
	}
	return b.client, nil
}

func (b *BinanceFutures) MarkPrice(ctx context.Context, symbol string) (decimalx.Price, error) {
	client, err := b.ensureConnected()
	if err != nil {
		return decimalx.Price{}, err
	}
	sym := binanceSymbol(symbol)
	prices, err := client.NewPremiumIndexService().Symbol(sym).Do(ctx)
	if err != nil {
		return decimalx.Price{}, apperrors.Wrap(apperrors.ErrTransient, "mark price fetch failed", err)
	}
	if len(prices) == 0 {
		return decimalx.Price{}, apperrors.Wrap(apperrors.ErrVenueBusiness, "no mark price for symbol", nil)
	}
	d, err := decimalx.NewDecimalFromString(prices[0].MarkPrice)
	if err != nil {
		return decimalx.Price{}, err
	}
	return decimalx.NewPrice(d)
}

func (b *BinanceFutures) FundingRate(ctx context.Context, symbol string) (decimalx.Signed, error) {
	client, err := b.ensureConnected()
	if err != nil {
		return decimalx.Signed{}, err
	}
	sym := binanceSymbol(symbol)
	rates, err := client.NewFundingRateService().Symbol(sym).Do(ctx)
	if err != nil {
		return decimalx.Signed{}, apperrors.Wrap(apperrors.ErrTransient, "funding rate fetch failed", err)
	}
	if len(rates) == 0 {
		return decimalx.ZeroSigned(), nil
	}
	d, err := decimalx.NewDecimalFromString(rates[len(rates)-1].FundingRate)
	if err != nil {
		return decimalx.Signed{}, err
	}
	return decimalx.NewSigned(d), nil
}

func (b *BinanceFutures) Balance(ctx context.Context, currency string) (decimalx.Decimal, error) {
	client, err := b.ensureConnected()
	if err != nil {
		return decimalx.Decimal{}, err
	}
	balances, err := client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return decimalx.Decimal{}, apperrors.Wrap(apperrors.ErrTransient, "balance fetch failed", err)
	}
	for _, bal := range balances {
		if bal.Asset == currency {
			return decimalx.NewDecimalFromString(bal.AvailableBalance)
		}
	}
	return decimalx.Zero(), nil
}

func (b *BinanceFutures) Position(ctx context.Context, symbol string) (Position, error) {
	client, err := b.ensureConnected()
	if err != nil {
		return Position{}, err
	}
	sym := binanceSymbol(symbol)
	risks, err := client.NewGetPositionRiskService().Symbol(sym).Do(ctx)
	if err != nil {
		return Position{}, apperrors.Wrap(apperrors.ErrTransient, "position fetch failed", err)
	}
	if len(risks) == 0 {
		return Position{Side: SideNone, Size: decimalx.ZeroAmount(), Margin: decimalx.ZeroAmount(), Leverage: decimalx.NewDecimal(1)}, nil
	}
	risk := risks[0]
	amt, err := decimalx.NewDecimalFromString(risk.PositionAmt)
	if err != nil {
		return Position{}, err
	}
	side := SideNone
	if amt.IsPositive() {
		side = SideLong
	} else if amt.IsNegative() {
		side = SideShort
	}
	size, err := decimalx.NewAmount(amt.Abs())
	if err != nil {
		return Position{}, err
	}
	entry, err := decimalx.NewDecimalFromString(risk.EntryPrice)
	if err != nil {
		return Position{}, err
	}
	entryPrice, err := decimalx.NewPrice(entry)
	if err != nil {
		return Position{}, err
	}
	mark, err := decimalx.NewDecimalFromString(risk.MarkPrice)
	if err != nil {
		return Position{}, err
	}
	markPrice, err := decimalx.NewPrice(mark)
	if err != nil {
		return Position{}, err
	}
	unrealized, err := decimalx.NewDecimalFromString(risk.UnRealizedProfit)
	if err != nil {
		return Position{}, err
	}
	leverage, err := decimalx.NewDecimalFromString(risk.Leverage)
	if err != nil {
		return Position{}, err
	}
	margin, err := decimalx.NewDecimalFromString(risk.IsolatedMargin)
	if err != nil {
		return Position{}, err
	}
	marginAmt, err := decimalx.NewAmount(margin.Abs())
	if err != nil {
		return Position{}, err
	}

	return Position{
		Size:          size,
		Side:          side,
		EntryPrice:    &entryPrice,
		MarkPrice:     &markPrice,
		UnrealizedPnL: decimalx.NewSigned(unrealized),
		RealizedPnL:   decimalx.ZeroSigned(),
		Margin:        marginAmt,
		Leverage:      leverage,
	}, nil
}

func (b *BinanceFutures) SetLeverage(ctx context.Context, symbol string, leverage decimalx.Decimal) (bool, error) {
	client, err := b.ensureConnected()
	if err != nil {
		return false, err
	}
	sym := binanceSymbol(symbol)
	levInt, _ := strconv.Atoi(leverage.String())
	if levInt < 1 {
		levInt = 1
	}
	if _, err := client.NewChangeLeverageService().Symbol(sym).Leverage(levInt).Do(ctx); err != nil {
		b.log.Error(logging.TagVenue, "set leverage failed", err)
		return false, nil
	}
	b.log.Info(logging.TagLeverage, fmt.Sprintf("leverage set to %sx", leverage.String()))
	return true, nil
}

func (b *BinanceFutures) OpenShort(ctx context.Context, symbol string, size decimalx.Amount, leverage decimalx.Decimal) (model.Trade, error) {
	if !size.GreaterThan(decimalx.ZeroAmount()) {
		return model.Trade{}, apperrors.Wrap(apperrors.ErrVenueBusiness, "order size must be positive", nil)
	}
	if _, err := b.SetLeverage(ctx, symbol, leverage); err != nil {
		return model.Trade{}, err
	}
	return b.marketOrder(ctx, symbol, futures.SideTypeSell, size)
}

func (b *BinanceFutures) CloseShort(ctx context.Context, symbol string, size decimalx.Amount) (model.Trade, error) {
	if !size.GreaterThan(decimalx.ZeroAmount()) {
		return model.Trade{}, apperrors.Wrap(apperrors.ErrVenueBusiness, "order size must be positive", nil)
	}
	return b.marketOrder(ctx, symbol, futures.SideTypeBuy, size)
}

func (b *BinanceFutures) marketOrder(ctx context.Context, symbol string, side futures.SideType, size decimalx.Amount) (model.Trade, error) {
	client, err := b.ensureConnected()
	if err != nil {
		return model.Trade{}, err
	}
	sym := binanceSymbol(symbol)
	order, err := client.NewCreateOrderService().
		Symbol(sym).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(size.String()).
		Do(ctx)
	if err != nil {
		return model.Trade{}, apperrors.Wrap(apperrors.ErrVenueBusiness, "market order failed", err)
	}

	price, err := decimalx.NewDecimalFromString(order.AvgPrice)
	if err != nil {
		price = decimalx.Zero()
	}
	tradePrice, err := decimalx.NewPrice(price)
	if err != nil {
		tradePrice = decimalx.ZeroPrice()
	}
	filled, err := decimalx.NewDecimalFromString(order.ExecutedQuantity)
	if err != nil {
		filled = size.Decimal()
	}
	filledAmt, err := decimalx.NewAmount(filled.Abs())
	if err != nil {
		filledAmt = size
	}

	modelSide := model.SideSell
	if side == futures.SideTypeBuy {
		modelSide = model.SideBuy
	}
	status := model.StatusOpen
	if string(order.Status) == "FILLED" {
		status = model.StatusFilled
	}

	b.log.Info(logging.TagTradeExecuted, fmt.Sprintf("%s %s @ %s", modelSide, filledAmt.String(), tradePrice.String()))

	return model.Trade{
		Symbol:    symbol,
		Side:      modelSide,
		OrderType: model.OrderMarket,
		Size:      filledAmt,
		Price:     tradePrice,
		Timestamp: decimalx.Unix(0, order.UpdateTime*int64(1e6)),
		OrderID:   strconv.FormatInt(order.OrderID, 10),
		Status:    status,
		Venue:     "binance",
	}, nil
}

func (b *BinanceFutures) OrderStatus(ctx context.Context, orderID, symbol string) (OrderInfo, error) {
	client, err := b.ensureConnected()
	if err != nil {
		return OrderInfo{}, err
	}
	sym := binanceSymbol(symbol)
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return OrderInfo{}, apperrors.Wrap(apperrors.ErrVenueBusiness, "invalid order id", err)
	}
	order, err := client.NewGetOrderService().Symbol(sym).OrderID(id).Do(ctx)
	if err != nil {
		return OrderInfo{}, apperrors.Wrap(apperrors.ErrTransient, "order status fetch failed", err)
	}
	amount, _ := decimalx.NewDecimalFromString(order.OrigQuantity)
	filled, _ := decimalx.NewDecimalFromString(order.ExecutedQuantity)
	amountAmt, _ := decimalx.NewAmount(amount.Abs())
	filledAmt, _ := decimalx.NewAmount(filled.Abs())
	remaining, err := amountAmt.Sub(filledAmt)
	if err != nil {
		remaining = decimalx.ZeroAmount()
	}

	return OrderInfo{
		OrderID:   orderID,
		Symbol:    symbol,
		Type:      model.OrderMarket,
		Amount:    amountAmt,
		Filled:    filledAmt,
		Remaining: remaining,
		Status:    model.StatusOpen,
	}, nil
}

func (b *BinanceFutures) CancelOrder(ctx context.Context, orderID, symbol string) (bool, error) {
	client, err := b.ensureConnected()
	if err != nil {
		return false, err
	}
	sym := binanceSymbol(symbol)
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrVenueBusiness, "invalid order id", err)
	}
	if _, err := client.NewCancelOrderService().Symbol(sym).OrderID(id).Do(ctx); err != nil {
		b.log.Error(logging.TagVenue, "cancel order failed", err)
		return false, nil
	}
	return true, nil
}

func (b *BinanceFutures) OrderBook(ctx context.Context, symbol string, limit int) (OrderBook, error) {
	client, err := b.ensureConnected()
	if err != nil {
		return OrderBook{}, err
	}
	sym := binanceSymbol(symbol)
	depth, err := client.NewDepthService().Symbol(sym).Limit(limit).Do(ctx)
	if err != nil {
		return OrderBook{}, apperrors.Wrap(apperrors.ErrTransient, "order book fetch failed", err)
	}
	book := OrderBook{Symbol: symbol}
	for _, bid := range depth.Bids {
		level, err := toLevel(bid.Price, bid.Quantity)
		if err == nil {
			book.Bids = append(book.Bids, level)
		}
	}
	for _, ask := range depth.Asks {
		level, err := toLevel(ask.Price, ask.Quantity)
		if err == nil {
			book.Asks = append(book.Asks, level)
		}
	}
	return book, nil
}

func toLevel(priceStr, sizeStr string) (OrderBookLevel, error) {
	priceDec, err := decimalx.NewDecimalFromString(priceStr)
	if err != nil {
		return OrderBookLevel{}, err
	}
	price, err := decimalx.NewPrice(priceDec)
	if err != nil {
		return OrderBookLevel{}, err
	}
	sizeDec, err := decimalx.NewDecimalFromString(sizeStr)
	if err != nil {
		return OrderBookLevel{}, err
	}
	size, err := decimalx.NewAmount(sizeDec)
	if err != nil {
		return OrderBookLevel{}, err
	}
	return OrderBookLevel{Price: price, Size: size}, nil
}

func (b *BinanceFutures) RecentTrades(ctx context.Context, symbol string, limit int) ([]model.Trade, error) {
	client, err := b.ensureConnected()
	if err != nil {
		return nil, err
	}
	sym := binanceSymbol(symbol)
	trades, err := client.NewRecentTradesListService().Symbol(sym).Limit(limit).Do(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransient, "recent trades fetch failed", err)
	}
	result := make([]model.Trade, 0, len(trades))
	for _, t := range trades {
		priceDec, err := decimalx.NewDecimalFromString(t.Price)
		if err != nil {
			continue
		}
		price, err := decimalx.NewPrice(priceDec)
		if err != nil {
			continue
		}
		sizeDec, err := decimalx.NewDecimalFromString(t.Quantity)
		if err != nil {
			continue
		}
		size, err := decimalx.NewAmount(sizeDec)
		if err != nil {
			continue
		}
		side := model.SideBuy
		if t.IsBuyerMaker {
			side = model.SideSell
		}
		result = append(result, model.Trade{
			Symbol:    symbol,
			Side:      side,
			OrderType: model.OrderMarket,
			Size:      size,
			Price:     price,
			Timestamp: decimalx.Unix(0, t.Time*int64(1e6)),
			OrderID:   strconv.FormatInt(t.ID, 10),
			Status:    model.StatusFilled,
			Venue:     "binance",
		})
	}
	return result, nil
}
