package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
	"github.com/johnayoung/delta-hedge-bot/internal/logging"
	"github.com/johnayoung/delta-hedge-bot/internal/model"
)

type fakeRisk struct {
	shouldHedge  bool
	hedgeSize    decimalx.Signed
	emergencyHit bool
}

func (f *fakeRisk) ShouldHedge(snapshot model.PositionSnapshot, force bool, now decimalx.Time) (bool, decimalx.Signed) {
	return f.shouldHedge, f.hedgeSize
}
func (f *fakeRisk) EmergencyStopCheck(cumulativeLoss decimalx.Decimal) bool {
	return f.emergencyHit
}

type fakeExecutor struct {
	record       model.HedgeRecord
	err          error
	emergency    model.HedgeRecord
	emergErr     error
	calls        int
	lastExpected decimalx.Price
}

func (f *fakeExecutor) Execute(ctx context.Context, snapshot model.PositionSnapshot, hedgeSize decimalx.Signed, expectedPrice decimalx.Price) (model.HedgeRecord, error) {
	f.calls++
	f.lastExpected = expectedPrice
	return f.record, f.err
}
func (f *fakeExecutor) EmergencyCloseAll(ctx context.Context) (model.HedgeRecord, error) {
	return f.emergency, f.emergErr
}

type fakeMark struct {
	price decimalx.Price
	err   error
}

func (f *fakeMark) MarkPrice(ctx context.Context, symbol string) (decimalx.Price, error) {
	return f.price, f.err
}

func snap() model.PositionSnapshot {
	return model.PositionSnapshot{
		Reserve1:  decimalx.MustAmount(decimalx.NewDecimal(10)),
		ShortSize: decimalx.MustAmount(decimalx.NewDecimal(7)),
		Timestamp: decimalx.Now(),
		Status:    model.PoolUnlocked,
	}
}

func TestProcessSnapshotNoOpWhenRiskDeclines(t *testing.T) {
	risk := &fakeRisk{shouldHedge: false}
	exec := &fakeExecutor{}
	core := New(risk, exec, &fakeMark{price: decimalx.MustPrice(decimalx.NewDecimal(2000))}, logging.New("error"), "ETHUSDT")

	record, err := core.ProcessSnapshot(context.Background(), snap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Fatal("expected nil record for no-op")
	}
	if exec.calls != 0 {
		t.Fatal("expected executor not called on no-op")
	}
}

func TestProcessSnapshotExecutesWhenRiskApproves(t *testing.T) {
	risk := &fakeRisk{shouldHedge: true, hedgeSize: decimalx.NewSigned(decimalx.NewDecimal(3))}
	exec := &fakeExecutor{record: model.HedgeRecord{Success: true}}
	core := New(risk, exec, &fakeMark{price: decimalx.MustPrice(decimalx.NewDecimal(2000))}, logging.New("error"), "ETHUSDT")
	core.UpdateParameters(decimalx.Seconds(0))

	record, err := core.ProcessSnapshot(context.Background(), snap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record == nil || !record.Success {
		t.Fatal("expected successful hedge record")
	}
	if exec.calls != 1 {
		t.Fatalf("expected one executor call, got %d", exec.calls)
	}
	stats := core.Stats()
	if stats.TotalHedges != 1 || stats.SuccessfulHedges != 1 {
		t.Fatalf("expected stats to reflect one successful hedge, got %+v", stats)
	}
}

func TestProcessSnapshotUsesPreviousTickMarkPriceNotLiveRead(t *testing.T) {
	risk := &fakeRisk{shouldHedge: true, hedgeSize: decimalx.NewSigned(decimalx.NewDecimal(3))}
	exec := &fakeExecutor{record: model.HedgeRecord{Success: true}}
	mark := &fakeMark{price: decimalx.MustPrice(decimalx.NewDecimal(2000))}
	core := New(risk, exec, mark, logging.New("error"), "ETHUSDT")
	core.UpdateParameters(decimalx.Seconds(0))

	if _, err := core.ProcessSnapshot(context.Background(), snap()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exec.lastExpected.Equal(decimalx.ZeroPrice()) {
		t.Fatalf("expected first hedge to use zero baseline, got %s", exec.lastExpected.String())
	}

	mark.price = decimalx.MustPrice(decimalx.NewDecimal(2100))
	if _, err := core.ProcessSnapshot(context.Background(), snap()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exec.lastExpected.Equal(decimalx.MustPrice(decimalx.NewDecimal(2000))) {
		t.Fatalf("expected second hedge to use first tick's mark price as baseline, got %s", exec.lastExpected.String())
	}
}

func TestProcessSnapshotSkipsHedgeWhenPoolNotUnlocked(t *testing.T) {
	risk := &fakeRisk{shouldHedge: true, hedgeSize: decimalx.NewSigned(decimalx.NewDecimal(3))}
	exec := &fakeExecutor{record: model.HedgeRecord{Success: true}}
	core := New(risk, exec, &fakeMark{price: decimalx.MustPrice(decimalx.NewDecimal(2000))}, logging.New("error"), "ETHUSDT")
	core.UpdateParameters(decimalx.Seconds(0))

	locked := snap()
	locked.Status = model.PoolLocked

	record, err := core.ProcessSnapshot(context.Background(), locked)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Fatal("expected nil record when pool status blocks hedging")
	}
	if exec.calls != 0 {
		t.Fatal("expected executor not called when pool status blocks hedging")
	}
}

func TestProcessSnapshotSkipsWhenBelowMinInterval(t *testing.T) {
	risk := &fakeRisk{shouldHedge: true, hedgeSize: decimalx.NewSigned(decimalx.NewDecimal(3))}
	exec := &fakeExecutor{record: model.HedgeRecord{Success: true}}
	core := New(risk, exec, &fakeMark{price: decimalx.MustPrice(decimalx.NewDecimal(2000))}, logging.New("error"), "ETHUSDT")

	// default min interval is 30s and lastHedgeTime is "now" at construction.
	record, err := core.ProcessSnapshot(context.Background(), snap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Fatal("expected skip within minimum hedge interval")
	}
	if exec.calls != 0 {
		t.Fatal("expected executor not called when interval has not elapsed")
	}
}

func TestProcessSnapshotPropagatesMarkPriceError(t *testing.T) {
	risk := &fakeRisk{shouldHedge: true, hedgeSize: decimalx.NewSigned(decimalx.NewDecimal(3))}
	exec := &fakeExecutor{}
	core := New(risk, exec, &fakeMark{err: errors.New("mark price unavailable")}, logging.New("error"), "ETHUSDT")
	core.UpdateParameters(decimalx.Seconds(0))

	_, err := core.ProcessSnapshot(context.Background(), snap())
	if err == nil {
		t.Fatal("expected mark price error to propagate")
	}
	if exec.calls != 0 {
		t.Fatal("expected executor not reached when mark price fails")
	}
}

func TestRecordRealizedLossTripsEmergencyStop(t *testing.T) {
	risk := &fakeRisk{emergencyHit: true}
	exec := &fakeExecutor{}
	core := New(risk, exec, &fakeMark{}, logging.New("error"), "ETHUSDT")
	if !core.RecordRealizedLoss(decimalx.NewDecimal(500)) {
		t.Fatal("expected emergency stop to trip")
	}
}

func TestEmergencyCloseAllUpdatesStats(t *testing.T) {
	risk := &fakeRisk{}
	exec := &fakeExecutor{emergency: model.HedgeRecord{Success: true}}
	core := New(risk, exec, &fakeMark{}, logging.New("error"), "ETHUSDT")

	record, err := core.EmergencyCloseAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !record.Success {
		t.Fatal("expected success")
	}
	if core.Stats().TotalHedges != 1 {
		t.Fatalf("expected emergency close to count as a hedge, got %+v", core.Stats())
	}
}
