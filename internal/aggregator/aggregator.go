// Package aggregator implements the single-threaded tick loop: poll the
// pool's reserves and the venue's position, combine them into a
// PositionSnapshot, persist best-effort, and hand the snapshot to exactly
// one callback, awaited to completion before the next tick begins.
package aggregator

import (
	"context"
	"time"

	"github.com/johnayoung/delta-hedge-bot/internal/apperrors"
	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
	"github.com/johnayoung/delta-hedge-bot/internal/logging"
	"github.com/johnayoung/delta-hedge-bot/internal/model"
	"github.com/johnayoung/delta-hedge-bot/internal/venue"
)

// PositionSource is the subset of venue.Adapter the aggregator needs to
// read the current short position.
type PositionSource interface {
	Position(ctx context.Context, symbol string) (venue.Position, error)
	Balance(ctx context.Context, currency string) (decimalx.Decimal, error)
}

// Persister is the subset of internal/ledger.Store the aggregator writes
// snapshots through. A nil Persister disables persistence entirely.
type Persister interface {
	SaveSnapshot(ctx context.Context, snap model.PositionSnapshot) error
}

// ReserveFetcher decouples the aggregator from poolrpc's raw-bytes return
// shape: it already returns human-unit amounts and the pool's status.
type ReserveFetcher interface {
	FetchReserves(ctx context.Context) (reserve0, reserve1 decimalx.Amount, status model.PoolStatus, blockNumber *uint64, err error)
	Params(ctx context.Context, invalidate bool) (model.PoolParams, error)
}

// Callback receives each snapshot and is awaited to completion before the
// aggregator schedules its next tick.
type Callback func(ctx context.Context, snap model.PositionSnapshot) error

// Monitor is the aggregator: SwapMonitor in the original system, renamed
// here because it aggregates two independent data sources rather than
// simply watching swaps.
type Monitor struct {
	pool      ReserveFetcher
	venue     PositionSource
	persister Persister
	log       *logging.Handle
	symbol    string
	poolAddr  string

	// desyncThreshold is the maximum percent deviation of either reserve
	// from its equilibrium value before a tick logs a desync warning.
	desyncThreshold decimalx.Decimal

	lastSnapshot *model.PositionSnapshot
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
}

// New constructs a Monitor. persister may be nil to disable persistence.
// desyncThreshold is the percent deviation (e.g. 5 for 5%) that triggers a
// desync warning; see model.IsDesynchronized.
func New(pool ReserveFetcher, venue PositionSource, persister Persister, log *logging.Handle, symbolPerpetual, poolAddress string, desyncThreshold decimalx.Decimal) *Monitor {
	return &Monitor{
		pool:            pool,
		venue:           venue,
		persister:       persister,
		log:             log,
		symbol:          symbolPerpetual,
		poolAddr:        poolAddress,
		desyncThreshold: desyncThreshold,
	}
}

// FetchSnapshot performs one tick synchronously: reserves, position,
// combine, persist best-effort. It does not invoke the callback; callers
// that want the callback invoked should use Start or call the callback
// themselves after FetchSnapshot returns.
func (m *Monitor) FetchSnapshot(ctx context.Context) (model.PositionSnapshot, error) {
	reserve0, reserve1, status, blockNumber, err := m.pool.FetchReserves(ctx)
	if err != nil {
		m.log.Error(logging.TagRPC, "failed to fetch reserves", err)
		return model.PositionSnapshot{}, err
	}

	if status != model.PoolUnlocked {
		m.log.Warn(logging.TagWarning, apperrors.Wrap(apperrors.ErrPoolState, "pool status "+string(status)+" blocks hedging this tick", nil).Error())
	}

	if params, paramsErr := m.pool.Params(ctx, false); paramsErr != nil {
		m.log.Warn(logging.TagRPC, "failed to fetch pool params, skipping desync check: "+paramsErr.Error())
	} else if model.IsDesynchronized(reserve0, reserve1, params, m.desyncThreshold) {
		m.log.Warn(logging.TagWarning, "pool reserves desynchronized from equilibrium beyond threshold, hedging continues but position sizing may be unreliable")
	}

	shortSize := m.fetchShortPosition(ctx)

	snap := model.PositionSnapshot{
		Reserve0:    reserve0,
		Reserve1:    reserve1,
		ShortSize:   shortSize,
		Timestamp:   decimalx.Now(),
		BlockNumber: blockNumber,
		PoolAddress: m.poolAddr,
		Status:      status,
	}

	if m.persister != nil {
		if err := m.persister.SaveSnapshot(ctx, snap); err != nil {
			m.log.Warn(logging.TagDatabase, "failed to persist snapshot, continuing")
		}
	}

	m.log.Info(logging.TagPositionPolling, "reserve0="+snap.Reserve0.String()+
		" reserve1="+snap.Reserve1.String()+
		" short_size="+snap.ShortSize.String()+
		" delta="+snap.Delta().String())

	m.lastSnapshot = &snap
	return snap, nil
}

func (m *Monitor) fetchShortPosition(ctx context.Context) decimalx.Amount {
	pos, err := m.venue.Position(ctx, m.symbol)
	if err != nil {
		m.log.Error(logging.TagVenue, "failed to fetch short position", err)
		return decimalx.ZeroAmount()
	}
	if pos.Side != venue.SideShort {
		return decimalx.ZeroAmount()
	}
	return pos.Size
}

// Start begins polling every interval on its own goroutine, invoking
// callback with each snapshot and awaiting it to completion before
// scheduling the next tick. Returns once the goroutine has been launched;
// call Stop (or cancel the derived context) to end monitoring.
func (m *Monitor) Start(ctx context.Context, interval time.Duration, callback Callback) {
	if m.running {
		m.log.Warn(logging.TagRPC, "monitoring already started")
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.done = make(chan struct{})

	m.log.Info(logging.TagRPC, "starting swap monitoring")

	go m.loop(loopCtx, interval, callback)
}

func (m *Monitor) loop(ctx context.Context, interval time.Duration, callback Callback) {
	defer close(m.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.running = false
			m.log.Info(logging.TagRPC, "stopped swap monitoring")
			return
		default:
		}

		snap, err := m.FetchSnapshot(ctx)
		if err != nil {
			m.log.Error(logging.TagRPC, "error in monitoring loop", err)
		} else if callback != nil {
			if err := callback(ctx, snap); err != nil {
				m.log.Error(logging.TagStrategy, "snapshot callback failed", err)
			}
		}

		select {
		case <-ctx.Done():
			m.running = false
			m.log.Info(logging.TagRPC, "stopped swap monitoring")
			return
		case <-ticker.C:
		}
	}
}

// Stop cancels the monitoring loop and waits for it to exit.
func (m *Monitor) Stop() {
	if !m.running || m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// LastSnapshot returns the most recently fetched snapshot, if any.
func (m *Monitor) LastSnapshot() (model.PositionSnapshot, bool) {
	if m.lastSnapshot == nil {
		return model.PositionSnapshot{}, false
	}
	return *m.lastSnapshot, true
}

// HistoricalSnapshots delegates to a query-capable persister for snapshots
// within the given lookback window.
type HistoricalSource interface {
	RecentSnapshots(ctx context.Context, n int) ([]model.PositionSnapshot, error)
}

// HistoricalSnapshots returns up to limit snapshots from lookback, newest
// first, filtered to those within the window.
func HistoricalSnapshots(ctx context.Context, src HistoricalSource, lookback time.Duration, limit int) ([]model.PositionSnapshot, error) {
	all, err := src.RecentSnapshots(ctx, limit)
	if err != nil {
		return nil, err
	}
	cutoff := decimalx.NewTime(time.Now().UTC().Add(-lookback))
	out := make([]model.PositionSnapshot, 0, len(all))
	for _, s := range all {
		if s.Timestamp.After(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

// CheckConnection verifies both the pool RPC endpoint and the venue
// connection are reachable.
func (m *Monitor) CheckConnection(ctx context.Context) bool {
	if _, _, _, _, err := m.pool.FetchReserves(ctx); err != nil {
		m.log.Error(logging.TagRPC, "connection check failed: pool", err)
		return false
	}
	if _, err := m.venue.Balance(ctx, "USDT"); err != nil {
		m.log.Error(logging.TagVenue, "connection check failed: venue", err)
		return false
	}
	return true
}
