package domain

import "time"

// Bar is a closed 5-minute OHLCV candle for one symbol.
//
// Start is the IST minute the window opened at, aligned to the 5-minute
// grid (00, 05, 10, ... 55). A Bar is only ever constructed once its
// window has closed; there is no mutable in-progress Bar type — the
// in-progress OHLC shown in the UI is tracked separately in Quote.
type Bar struct {
	Symbol string
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// End returns the exclusive end of the bar's 5-minute window.
func (b Bar) End() time.Time {
	return b.Start.Add(5 * time.Minute)
}

// Valid reports whether the bar satisfies the OHLC ordering invariant.
func (b Bar) Valid() bool {
	if b.Low > b.Open || b.Low > b.Close || b.Low > b.High {
		return false
	}
	if b.High < b.Open || b.High < b.Close {
		return false
	}
	return b.Start.Minute()%5 == 0 && b.Start.Second() == 0
}

// WindowStart floors ts down to the start of its 5-minute bucket.
func WindowStart(ts time.Time) time.Time {
	ts = ts.Truncate(time.Minute)
	m := ts.Minute()
	floored := m - m%5
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), floored, 0, 0, ts.Location())
}
