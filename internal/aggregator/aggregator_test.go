package aggregator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
	"github.com/johnayoung/delta-hedge-bot/internal/logging"
	"github.com/johnayoung/delta-hedge-bot/internal/model"
	"github.com/johnayoung/delta-hedge-bot/internal/venue"
)

type fakeReserves struct {
	reserve0, reserve1 decimalx.Amount
	status             model.PoolStatus
	err                error

	params    model.PoolParams
	paramsErr error
}

func (f *fakeReserves) FetchReserves(ctx context.Context) (decimalx.Amount, decimalx.Amount, model.PoolStatus, *uint64, error) {
	if f.err != nil {
		return decimalx.Amount{}, decimalx.Amount{}, "", nil, f.err
	}
	return f.reserve0, f.reserve1, f.status, nil, nil
}

func (f *fakeReserves) Params(ctx context.Context, invalidate bool) (model.PoolParams, error) {
	return f.params, f.paramsErr
}

type fakePositionSource struct {
	position venue.Position
	err      error
	balance  decimalx.Decimal
}

func (f *fakePositionSource) Position(ctx context.Context, symbol string) (venue.Position, error) {
	return f.position, f.err
}
func (f *fakePositionSource) Balance(ctx context.Context, currency string) (decimalx.Decimal, error) {
	return f.balance, nil
}

type fakePersister struct {
	saved int32
}

func (f *fakePersister) SaveSnapshot(ctx context.Context, snap model.PositionSnapshot) error {
	atomic.AddInt32(&f.saved, 1)
	return nil
}

func TestFetchSnapshotCombinesReservesAndPosition(t *testing.T) {
	pool := &fakeReserves{
		reserve0: decimalx.MustAmount(decimalx.NewDecimal(1000)),
		reserve1: decimalx.MustAmount(decimalx.NewDecimal(10)),
		status:   model.PoolUnlocked,
	}
	venueSrc := &fakePositionSource{position: venue.Position{Side: venue.SideShort, Size: decimalx.MustAmount(decimalx.NewDecimal(7))}}
	persister := &fakePersister{}

	m := New(pool, venueSrc, persister, logging.New("error"), "ETHUSDT", "0xpool", decimalx.NewDecimal(5))
	snap, err := m.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.ShortSize.Equal(decimalx.MustAmount(decimalx.NewDecimal(7))) {
		t.Fatalf("expected short size 7, got %s", snap.ShortSize.String())
	}
	if snap.Delta().String() != "3" {
		t.Fatalf("expected delta 3, got %s", snap.Delta().String())
	}
	if atomic.LoadInt32(&persister.saved) != 1 {
		t.Fatal("expected snapshot to be persisted")
	}
}

func TestFetchSnapshotTreatsNonShortPositionAsZero(t *testing.T) {
	pool := &fakeReserves{reserve0: decimalx.ZeroAmount(), reserve1: decimalx.MustAmount(decimalx.NewDecimal(5))}
	venueSrc := &fakePositionSource{position: venue.Position{Side: venue.SideLong, Size: decimalx.MustAmount(decimalx.NewDecimal(99))}}
	m := New(pool, venueSrc, nil, logging.New("error"), "ETHUSDT", "0xpool", decimalx.NewDecimal(5))

	snap, err := m.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.ShortSize.IsZero() {
		t.Fatalf("expected zero short size for a long position, got %s", snap.ShortSize.String())
	}
}

func TestFetchSnapshotPropagatesReserveError(t *testing.T) {
	pool := &fakeReserves{err: errors.New("rpc down")}
	venueSrc := &fakePositionSource{}
	m := New(pool, venueSrc, nil, logging.New("error"), "ETHUSDT", "0xpool", decimalx.NewDecimal(5))

	if _, err := m.FetchSnapshot(context.Background()); err == nil {
		t.Fatal("expected reserve fetch error to propagate")
	}
}

func TestStartInvokesCallbackPerTick(t *testing.T) {
	pool := &fakeReserves{reserve0: decimalx.ZeroAmount(), reserve1: decimalx.MustAmount(decimalx.NewDecimal(5))}
	venueSrc := &fakePositionSource{}
	m := New(pool, venueSrc, nil, logging.New("error"), "ETHUSDT", "0xpool", decimalx.NewDecimal(5))

	var ticks int32
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx, 10*time.Millisecond, func(cbCtx context.Context, snap model.PositionSnapshot) error {
		if atomic.AddInt32(&ticks, 1) == 2 {
			close(done)
		}
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for at least two ticks")
	}
	m.Stop()
}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	pool := &fakeReserves{reserve1: decimalx.MustAmount(decimalx.NewDecimal(1))}
	venueSrc := &fakePositionSource{}
	m := New(pool, venueSrc, nil, logging.New("error"), "ETHUSDT", "0xpool", decimalx.NewDecimal(5))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx, time.Hour, func(context.Context, model.PositionSnapshot) error { return nil })
	m.Start(ctx, time.Hour, func(context.Context, model.PositionSnapshot) error { return nil })
	m.Stop()
}

type fakeHistorical struct {
	snapshots []model.PositionSnapshot
}

func (f *fakeHistorical) RecentSnapshots(ctx context.Context, n int) ([]model.PositionSnapshot, error) {
	return f.snapshots, nil
}

func TestHistoricalSnapshotsFiltersOutsideLookbackWindow(t *testing.T) {
	recent := model.PositionSnapshot{Timestamp: decimalx.Now(), Reserve1: decimalx.ZeroAmount()}
	stale := model.PositionSnapshot{
		Timestamp: decimalx.NewTime(time.Now().UTC().Add(-48 * time.Hour)),
		Reserve1:  decimalx.ZeroAmount(),
	}
	src := &fakeHistorical{snapshots: []model.PositionSnapshot{recent, stale}}

	out, err := HistoricalSnapshots(context.Background(), src, 24*time.Hour, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one snapshot within the lookback window, got %d", len(out))
	}
}

func TestFetchSnapshotWarnsAndStillRecordsWhenPoolNotUnlocked(t *testing.T) {
	pool := &fakeReserves{
		reserve0: decimalx.MustAmount(decimalx.NewDecimal(1000)),
		reserve1: decimalx.MustAmount(decimalx.NewDecimal(10)),
		status:   model.PoolLocked,
	}
	venueSrc := &fakePositionSource{}
	log := logging.New("error")
	m := New(pool, venueSrc, nil, log, "ETHUSDT", "0xpool", decimalx.NewDecimal(5))

	snap, err := m.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != model.PoolLocked {
		t.Fatalf("expected snapshot to still record pool status, got %q", snap.Status)
	}

	warnTag := logging.TagWarning
	entries := log.RecentLogs(10, &warnTag)
	if len(entries) == 0 {
		t.Fatal("expected a warning to be logged for a locked pool")
	}
}

func TestFetchSnapshotWarnsOnDesyncWithoutBlockingHedging(t *testing.T) {
	pool := &fakeReserves{
		reserve0: decimalx.MustAmount(decimalx.NewDecimal(11000)),
		reserve1: decimalx.MustAmount(decimalx.NewDecimal(4)),
		status:   model.PoolUnlocked,
		params: model.PoolParams{
			EquilibriumReserve0: decimalx.MustAmount(decimalx.NewDecimal(10000)),
			EquilibriumReserve1: decimalx.MustAmount(decimalx.NewDecimal(5)),
		},
	}
	venueSrc := &fakePositionSource{}
	log := logging.New("error")
	m := New(pool, venueSrc, nil, log, "ETHUSDT", "0xpool", decimalx.NewDecimal(5))

	snap, err := m.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != model.PoolUnlocked {
		t.Fatalf("expected status to round trip as unlocked, got %q", snap.Status)
	}

	warnTag := logging.TagWarning
	entries := log.RecentLogs(10, &warnTag)
	if len(entries) == 0 {
		t.Fatal("expected a desync warning to be logged")
	}
}

func TestCheckConnectionFailsWhenPoolUnreachable(t *testing.T) {
	pool := &fakeReserves{err: errors.New("down")}
	venueSrc := &fakePositionSource{}
	m := New(pool, venueSrc, nil, logging.New("error"), "ETHUSDT", "0xpool", decimalx.NewDecimal(5))
	if m.CheckConnection(context.Background()) {
		t.Fatal("expected connection check to fail")
	}
}
