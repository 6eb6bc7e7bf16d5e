package decimalx

import (
	"errors"
	"time"
)

// ErrInvalidDuration indicates an invalid duration value.
var ErrInvalidDuration = errors.New("invalid duration")

// Time wraps time.Time for temporal operations in the bot. All snapshots
// and records are stamped in UTC.
type Time struct {
	value time.Time
}

// NewTime creates a Time from a time.Time value, normalized to UTC.
func NewTime(t time.Time) Time {
	return Time{value: t.UTC()}
}

// Now returns the current time.
func Now() Time {
	return Time{value: time.Now().UTC()}
}

// Unix creates a Time from a Unix timestamp.
func Unix(sec int64, nsec int64) Time {
	return Time{value: time.Unix(sec, nsec).UTC()}
}

// Add returns the time t+d.
func (t Time) Add(d Duration) Time {
	return Time{value: t.value.Add(d.value)}
}

// Sub returns the duration t-u.
func (t Time) Sub(u Time) Duration {
	return Duration{value: t.value.Sub(u.value)}
}

// Before reports whether t is before u.
func (t Time) Before(u Time) bool {
	return t.value.Before(u.value)
}

// After reports whether t is after u.
func (t Time) After(u Time) bool {
	return t.value.After(u.value)
}

// Equal reports whether t and u represent the same instant.
func (t Time) Equal(u Time) bool {
	return t.value.Equal(u.value)
}

// Unix returns t as seconds since the epoch.
func (t Time) Unix() int64 {
	return t.value.Unix()
}

// UnixMicro returns t as microseconds since the epoch, the unit records are
// compared at for round-trip equality.
func (t Time) UnixMicro() int64 {
	return t.value.UnixMicro()
}

// String returns the string representation of t.
func (t Time) String() string {
	return t.value.String()
}

// Format formats t per the given layout.
func (t Time) Format(layout string) string {
	return t.value.Format(layout)
}

// Time returns the underlying time.Time.
func (t Time) Time() time.Time {
	return t.value
}

// Duration wraps time.Duration.
type Duration struct {
	value time.Duration
}

// NewDuration wraps a time.Duration value.
func NewDuration(d time.Duration) Duration {
	return Duration{value: d}
}

// Seconds creates a Duration from a count of seconds.
func Seconds(sec int64) Duration {
	return Duration{value: time.Duration(sec) * time.Second}
}

// Minutes creates a Duration from a count of minutes.
func Minutes(min int64) Duration {
	return Duration{value: time.Duration(min) * time.Minute}
}

// Hours creates a Duration from a count of hours.
func Hours(hr int64) Duration {
	return Duration{value: time.Duration(hr) * time.Hour}
}

// Add returns d+other.
func (d Duration) Add(other Duration) Duration {
	return Duration{value: d.value + other.value}
}

// Sub returns d-other.
func (d Duration) Sub(other Duration) Duration {
	return Duration{value: d.value - other.value}
}

// IsZero reports whether d is the zero duration.
func (d Duration) IsZero() bool {
	return d.value == 0
}

// GreaterThan returns true if d > other.
func (d Duration) GreaterThan(other Duration) bool {
	return d.value > other.value
}

// Seconds returns d as a floating point number of seconds.
func (d Duration) Seconds() float64 {
	return d.value.Seconds()
}

// String returns the string representation of d.
func (d Duration) String() string {
	return d.value.String()
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return d.value
}
