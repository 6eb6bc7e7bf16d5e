package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
	"github.com/johnayoung/delta-hedge-bot/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite://file:" + t.Name() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testSnapshot() model.PositionSnapshot {
	return model.PositionSnapshot{
		Reserve0:    decimalx.MustAmount(decimalx.NewDecimal(1000)),
		Reserve1:    decimalx.MustAmount(decimalx.NewDecimal(10)),
		ShortSize:   decimalx.MustAmount(decimalx.NewDecimal(7)),
		Timestamp:   decimalx.Now(),
		PoolAddress: "0xpool",
		Status:      model.PoolUnlocked,
	}
}

func TestSaveAndRecentSnapshotsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	snap := testSnapshot()
	if err := store.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := store.RecentSnapshots(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(out))
	}
	if !out[0].Reserve0.Equal(snap.Reserve0) || !out[0].ShortSize.Equal(snap.ShortSize) {
		t.Fatalf("round trip mismatch: got %+v", out[0])
	}
	if out[0].PoolAddress != "0xpool" {
		t.Fatalf("expected pool address to round trip, got %q", out[0].PoolAddress)
	}
	if out[0].Status != model.PoolUnlocked {
		t.Fatalf("expected status to round trip, got %q", out[0].Status)
	}
}

func TestSaveAndRecentHedgesRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	hedge := model.HedgeRecord{
		Action:      model.HedgeOpenShort,
		Size:        decimalx.MustAmount(decimalx.NewDecimal(3)),
		Price:       decimalx.MustPrice(decimalx.NewDecimal(2000)),
		Timestamp:   decimalx.Now(),
		DeltaBefore: decimalx.NewSigned(decimalx.NewDecimal(10)),
		DeltaAfter:  decimalx.NewSigned(decimalx.NewDecimal(7)),
		Leverage:    decimalx.NewDecimal(2),
		Venue:       "binance",
		OrderID:     "order-1",
		Success:     true,
	}
	if err := store.SaveHedge(ctx, hedge); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := store.RecentHedges(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one hedge, got %d", len(out))
	}
	if out[0].Action != model.HedgeOpenShort || !out[0].Success {
		t.Fatalf("round trip mismatch: got %+v", out[0])
	}
	if !out[0].DeltaAfter.Equal(hedge.DeltaAfter) {
		t.Fatalf("expected delta_after to round trip, got %s", out[0].DeltaAfter.String())
	}
}

func TestSaveTradeAndLookupByOrderID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	trade := model.Trade{
		Symbol:    "ETHUSDT",
		Side:      model.SideSell,
		OrderType: model.OrderMarket,
		Size:      decimalx.MustAmount(decimalx.NewDecimal(3)),
		Price:     decimalx.MustPrice(decimalx.NewDecimal(2000)),
		Timestamp: decimalx.Now(),
		OrderID:   "order-42",
		Status:    model.StatusFilled,
		Venue:     "binance",
	}
	if err := store.SaveTrade(ctx, trade); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, found, err := store.TradeByOrderID(ctx, "order-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected trade to be found")
	}
	if got.OrderID != "order-42" || got.Status != model.StatusFilled {
		t.Fatalf("round trip mismatch: got %+v", got)
	}

	_, found, err = store.TradeByOrderID(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected lookup of unknown order id to report not found")
	}
}

func TestUpdateTradeStatusIdempotentAndMissing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	trade := model.Trade{
		Symbol: "ETHUSDT", Side: model.SideSell, OrderType: model.OrderMarket,
		Size: decimalx.MustAmount(decimalx.NewDecimal(1)), Price: decimalx.MustPrice(decimalx.NewDecimal(2000)),
		Timestamp: decimalx.Now(), OrderID: "order-99", Status: model.StatusPending, Venue: "binance",
	}
	if err := store.SaveTrade(ctx, trade); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := store.UpdateTradeStatus(ctx, "order-99", model.StatusFilled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Fatal("expected update to report found")
	}

	updated, err = store.UpdateTradeStatus(ctx, "order-99", model.StatusFilled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Fatal("expected idempotent re-apply to still report found")
	}

	updated, err = store.UpdateTradeStatus(ctx, "no-such-order", model.StatusFilled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated {
		t.Fatal("expected update of missing order id to report false, not error")
	}
}

func TestSaveHedgeAndTradeCommitsBothAtomically(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	trade := model.Trade{
		Symbol: "ETHUSDT", Side: model.SideSell, OrderType: model.OrderMarket,
		Size: decimalx.MustAmount(decimalx.NewDecimal(3)), Price: decimalx.MustPrice(decimalx.NewDecimal(2000)),
		Timestamp: decimalx.Now(), OrderID: "order-7", Status: model.StatusFilled, Venue: "binance",
	}
	hedge := model.HedgeRecord{
		Action: model.HedgeOpenShort, Size: trade.Size, Price: trade.Price, Timestamp: trade.Timestamp,
		DeltaBefore: decimalx.NewSigned(decimalx.NewDecimal(10)), DeltaAfter: decimalx.NewSigned(decimalx.NewDecimal(7)),
		Leverage: decimalx.NewDecimal(2), Venue: "binance", OrderID: trade.OrderID, Success: true,
	}

	if err := store.SaveHedgeAndTrade(ctx, hedge, trade); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotTrade, found, err := store.TradeByOrderID(ctx, "order-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected trade to be persisted")
	}
	if gotTrade.OrderID != "order-7" {
		t.Fatalf("unexpected trade: %+v", gotTrade)
	}

	hedges, err := store.RecentHedges(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hedges) != 1 || hedges[0].OrderID != "order-7" {
		t.Fatalf("expected matching hedge record to be persisted, got %+v", hedges)
	}
}

func TestCleanupOldDataDeletesBeforeRetentionWindow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := testSnapshot()
	old.Timestamp = decimalx.NewTime(time.Now().UTC().AddDate(0, 0, -30))
	fresh := testSnapshot()
	fresh.Timestamp = decimalx.Now()

	if err := store.SaveSnapshot(ctx, old); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.SaveSnapshot(ctx, fresh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deleted, err := store.CleanupOldData(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 row deleted, got %d", deleted)
	}

	out, err := store.RecentSnapshots(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected only the fresh snapshot to survive cleanup, got %d", len(out))
	}
}
