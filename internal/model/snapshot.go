package model

import (
	"fmt"

	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
)

// PositionSnapshot pairs on-chain pool reserves with the off-chain short
// size at one instant. One is produced per aggregator tick.
type PositionSnapshot struct {
	Reserve0    decimalx.Amount
	Reserve1    decimalx.Amount
	ShortSize   decimalx.Amount
	Timestamp   decimalx.Time
	BlockNumber *uint64
	PoolAddress string

	// Status is the pool's hedging-eligibility state at the time this
	// snapshot was taken. A snapshot is still recorded on every tick
	// regardless of Status; only HedgingAllowed() gates the hedge itself.
	Status PoolStatus
}

// Delta returns the signed exposure in units of token1: reserve1 minus the
// short size. Positive means under-hedged (more short needed); negative
// means over-hedged.
func (s PositionSnapshot) Delta() decimalx.Signed {
	return decimalx.NewSigned(s.Reserve1.Decimal().Sub(s.ShortSize.Decimal()))
}

// IsDeltaNeutral reports whether the snapshot's delta is exactly zero.
func (s PositionSnapshot) IsDeltaNeutral() bool {
	return s.Delta().IsZero()
}

// MarshalRecord converts the snapshot to a plain map, the form persisted by
// the ledger and used for round-trip tests.
func (s PositionSnapshot) MarshalRecord() map[string]any {
	rec := map[string]any{
		"reserve0":     s.Reserve0.String(),
		"reserve1":     s.Reserve1.String(),
		"short_size":   s.ShortSize.String(),
		"timestamp_us": s.Timestamp.UnixMicro(),
		"pool_address": s.PoolAddress,
		"status":       string(s.Status),
	}
	if s.BlockNumber != nil {
		rec["block_number"] = *s.BlockNumber
	}
	return rec
}

// UnmarshalSnapshot rebuilds a PositionSnapshot from a record produced by
// MarshalRecord.
func UnmarshalSnapshot(rec map[string]any) (PositionSnapshot, error) {
	var s PositionSnapshot
	reserve0, err := decimalFieldAmount(rec, "reserve0")
	if err != nil {
		return s, err
	}
	reserve1, err := decimalFieldAmount(rec, "reserve1")
	if err != nil {
		return s, err
	}
	shortSize, err := decimalFieldAmount(rec, "short_size")
	if err != nil {
		return s, err
	}
	us, ok := rec["timestamp_us"].(int64)
	if !ok {
		return s, fmt.Errorf("missing or invalid timestamp_us")
	}
	poolAddress, _ := rec["pool_address"].(string)
	status, _ := rec["status"].(string)

	s = PositionSnapshot{
		Reserve0:    reserve0,
		Reserve1:    reserve1,
		ShortSize:   shortSize,
		Timestamp:   decimalx.Unix(0, us*1000),
		PoolAddress: poolAddress,
		Status:      PoolStatus(status),
	}
	if bn, ok := rec["block_number"].(uint64); ok {
		s.BlockNumber = &bn
	}
	return s, nil
}

func decimalFieldAmount(rec map[string]any, key string) (decimalx.Amount, error) {
	str, ok := rec[key].(string)
	if !ok {
		return decimalx.ZeroAmount(), fmt.Errorf("missing or invalid field %q", key)
	}
	d, err := decimalx.NewDecimalFromString(str)
	if err != nil {
		return decimalx.ZeroAmount(), err
	}
	return decimalx.NewAmount(d)
}
