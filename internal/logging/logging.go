// Package logging provides the process-wide log handle used across the
// hedge bot. It is constructed once at startup and passed explicitly to
// every component that needs it — never a package-level singleton, per the
// concurrency model's handle-injection rule.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/johnayoung/delta-hedge-bot/internal/decimalx"
)

// Tag classifies a log entry the way a structured field would, but is kept
// as its own enum so callers can filter recent entries by category without
// parsing messages.
type Tag string

const (
	TagPositionPolling   Tag = "position_polling"
	TagCalculatedHedge   Tag = "calculated_hedge"
	TagLeverage          Tag = "leverage"
	TagOpenShortPosition Tag = "open_short_position"
	TagCloseShortPos     Tag = "close_short_position"
	TagAdjustShortPos    Tag = "adjust_short_position"
	TagError             Tag = "error"
	TagWarning           Tag = "warning"
	TagInfo              Tag = "info"
	TagDebug             Tag = "debug"
	TagTradeExecuted     Tag = "trade_executed"
	TagStrategy          Tag = "strategy"
	TagRisk              Tag = "risk"
	TagDatabase          Tag = "database"
	TagVenue             Tag = "venue"
	TagRPC               Tag = "rpc"
	TagTUI               Tag = "tui"
)

// Entry is a single log record, kept in the bounded in-memory ring in
// addition to whatever zerolog writes out.
type Entry struct {
	Timestamp decimalx.Time
	Tag       Tag
	Message   string
	Level     string
}

// Callback receives every entry as it is logged, used by a terminal
// dashboard or similar out-of-process consumer.
type Callback func(Entry)

// Handle is the injected, process-wide log sink. It wraps a zerolog.Logger
// for structured output plus a bounded ring buffer of recent entries.
type Handle struct {
	mu       sync.Mutex
	logger   zerolog.Logger
	ring     []Entry
	maxLogs  int
	callback Callback
}

// Option configures a Handle at construction.
type Option func(*Handle)

// WithMaxLogs overrides the ring buffer capacity (default 1000).
func WithMaxLogs(n int) Option {
	return func(h *Handle) { h.maxLogs = n }
}

// WithFile adds a file sink alongside the console sink.
func WithFile(path string) Option {
	return func(h *Handle) {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return
		}
		h.logger = h.logger.Output(zerolog.MultiLevelWriter(
			zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"},
			f,
		))
	}
}

// New constructs a Handle at the given minimum level ("debug", "info",
// "warn", "error").
func New(level string, opts ...Option) *Handle {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	h := &Handle{
		logger:  zerolog.New(consoleWriter()).Level(lvl).With().Timestamp().Logger(),
		maxLogs: 1000,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func consoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
}

// SetCallback registers a callback invoked on every logged entry, for a
// terminal dashboard or similar consumer. Pass nil to clear it.
func (h *Handle) SetCallback(cb Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callback = cb
}

// Log records one entry at the given tag and level.
func (h *Handle) Log(tag Tag, level string, message string) {
	entry := Entry{
		Timestamp: decimalx.Now(),
		Tag:       tag,
		Message:   message,
		Level:     level,
	}

	h.mu.Lock()
	h.ring = append(h.ring, entry)
	if len(h.ring) > h.maxLogs {
		h.ring = h.ring[len(h.ring)-h.maxLogs:]
	}
	cb := h.callback
	h.mu.Unlock()

	var event *zerolog.Event
	switch level {
	case "error":
		event = h.logger.Error()
	case "warn":
		event = h.logger.Warn()
	case "debug":
		event = h.logger.Debug()
	default:
		event = h.logger.Info()
	}
	event.Str("tag", string(tag)).Msg(message)

	if cb != nil {
		cb(entry)
	}
}

// Info logs at info level under the given tag.
func (h *Handle) Info(tag Tag, message string) { h.Log(tag, "info", message) }

// Warn logs at warn level under the given tag.
func (h *Handle) Warn(tag Tag, message string) { h.Log(tag, "warn", message) }

// Debug logs at debug level under the given tag.
func (h *Handle) Debug(tag Tag, message string) { h.Log(tag, "debug", message) }

// Error logs at error level, optionally appending err's message.
func (h *Handle) Error(tag Tag, message string, err error) {
	if err != nil {
		message = message + ": " + err.Error()
	}
	h.Log(tag, "error", message)
}

// RecentLogs returns up to count of the most recent entries, optionally
// filtered by tag.
func (h *Handle) RecentLogs(count int, tag *Tag) []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	var filtered []Entry
	if tag == nil {
		filtered = h.ring
	} else {
		for _, e := range h.ring {
			if e.Tag == *tag {
				filtered = append(filtered, e)
			}
		}
	}
	if len(filtered) <= count {
		return append([]Entry(nil), filtered...)
	}
	return append([]Entry(nil), filtered[len(filtered)-count:]...)
}

// Statistics summarizes the ring buffer contents by level and tag.
type Statistics struct {
	TotalLogs int
	ByLevel   map[string]int
	ByTag     map[string]int
}

// Stats computes Statistics over the current ring buffer.
func (h *Handle) Stats() Statistics {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := Statistics{
		TotalLogs: len(h.ring),
		ByLevel:   make(map[string]int),
		ByTag:     make(map[string]int),
	}
	for _, e := range h.ring {
		stats.ByLevel[e.Level]++
		stats.ByTag[string(e.Tag)]++
	}
	return stats
}

// Clear empties the ring buffer.
func (h *Handle) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ring = nil
}
