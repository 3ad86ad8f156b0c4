// Package aggregator converts ticks into canonical 5-minute OHLCV bars.
package aggregator

import (
	"time"

	"github.com/akhanrex/probedge/internal/domain"
)

// window is the in-progress bar for one (symbol, start) bucket.
type window struct {
	start      time.Time
	open       float64
	high       float64
	low        float64
	closeTick  domain.Tick // last tick with ts <= window end seen so far
	haveClose  bool
	volume     int64
}

// Aggregator produces exactly one closed Bar per (symbol, 5-minute
// window) that received at least one tick, once the window's end has
// passed. A window with no ticks is never emitted — consumers must
// treat it as absent, not as zero.
type Aggregator struct {
	current map[string]*window // symbol -> in-progress window
	emitted map[string]map[time.Time]bool
}

// New constructs an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		current: map[string]*window{},
		emitted: map[string]map[time.Time]bool{},
	}
}

// Ingest folds one tick into the in-progress window for its symbol. It
// never moves open once set; high/low widen; close is the last tick
// whose ts falls within the window (ties at the window boundary belong
// to the next window, handled by the caller via domain.WindowStart).
func (a *Aggregator) Ingest(t domain.Tick) {
	start := domain.WindowStart(t.TS)
	w, ok := a.current[t.Symbol]
	if !ok || w.start != start {
		// A new window has begun for this symbol: the caller is
		// expected to have already flushed the previous one via Close
		// before ticks for a later window arrive, but we defend against
		// out-of-order delivery by simply starting fresh — Close()
		// already emitted anything closeable.
		w = &window{start: start, open: t.LTP, high: t.LTP, low: t.LTP}
		a.current[t.Symbol] = w
	}
	if t.LTP > w.high {
		w.high = t.LTP
	}
	if t.LTP < w.low {
		w.low = t.LTP
	}
	if !w.haveClose || !t.TS.Before(w.closeTick.TS) {
		w.closeTick = t
		w.haveClose = true
	}
	w.volume += t.Volume
}

// Close emits a closed Bar for symbol's current window if now has
// reached the window's end and it has not already been emitted. It
// returns (bar, true) when a bar was produced.
func (a *Aggregator) Close(symbol string, now time.Time) (domain.Bar, bool) {
	w, ok := a.current[symbol]
	if !ok {
		return domain.Bar{}, false
	}
	end := w.start.Add(5 * time.Minute)
	if now.Before(end) {
		return domain.Bar{}, false
	}
	if a.already(symbol, w.start) {
		return domain.Bar{}, false
	}
	bar := domain.Bar{
		Symbol: symbol,
		Start:  w.start,
		Open:   w.open,
		High:   w.high,
		Low:    w.low,
		Close:  w.closeTick.LTP,
		Volume: w.volume,
	}
	a.markEmitted(symbol, w.start)
	delete(a.current, symbol)
	return bar, true
}

// InProgress returns the today_open / running_high / running_low /
// last_close view of symbol's in-progress window, for publication into
// State. ok is false if no window has opened yet.
func (a *Aggregator) InProgress(symbol string) (open, high, low, last float64, volume int64, ok bool) {
	w, exists := a.current[symbol]
	if !exists {
		return 0, 0, 0, 0, 0, false
	}
	last = w.open
	if w.haveClose {
		last = w.closeTick.LTP
	}
	return w.open, w.high, w.low, last, w.volume, true
}

func (a *Aggregator) already(symbol string, start time.Time) bool {
	m, ok := a.emitted[symbol]
	if !ok {
		return false
	}
	return m[start]
}

func (a *Aggregator) markEmitted(symbol string, start time.Time) {
	m, ok := a.emitted[symbol]
	if !ok {
		m = map[time.Time]bool{}
		a.emitted[symbol] = m
	}
	m[start] = true
}
