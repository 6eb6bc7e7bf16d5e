// Package apperrors defines the error taxonomy shared across the hedge bot.
// Callers branch on category with errors.Is/errors.As rather than matching
// log strings.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a fatal configuration problem; the process should not
	// start with one of these outstanding.
	ErrConfig = errors.New("configuration error")

	// ErrTransient marks an I/O failure that is expected to clear on its own
	// (RPC timeout, venue rate limit, temporary network error). The tick
	// loop logs and continues on the next iteration.
	ErrTransient = errors.New("transient error")

	// ErrVenueBusiness marks a venue rejection that will not succeed on
	// retry (insufficient margin, invalid order size). Recorded as a failed
	// HedgeRecord, never retried automatically.
	ErrVenueBusiness = errors.New("venue rejected request")

	// ErrPoolState marks a pool in a state that should block hedging
	// (unactivated, locked) without being an outright failure.
	ErrPoolState = errors.New("pool state prevents hedging")

	// ErrRiskReject marks a hedge decision rejected by RiskCore. No
	// HedgeRecord is produced for a risk reject.
	ErrRiskReject = errors.New("risk check rejected hedge")

	// ErrLedger marks a persistence failure. The tick loop logs and
	// continues; the in-memory decision already made is not rolled back.
	ErrLedger = errors.New("ledger error")

	// ErrNotConnected indicates a VenueAdapter method was called before
	// Connect succeeded.
	ErrNotConnected = errors.New("venue adapter not connected")
)

// Wrap annotates err with a category sentinel and a short message so
// errors.Is(err, category) still succeeds after wrapping.
func Wrap(category error, msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", category, msg)
	}
	return fmt.Errorf("%w: %s: %v", category, msg, err)
}
