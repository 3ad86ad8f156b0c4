// Package classifier computes the three categorical session tags — PDC,
// OL, OT — as a pure function of the previous day's master row and
// today's opening-range bars. Same inputs always yield the same
// outputs; missing prior-day data degrades the affected tag to nil
// rather than guessing.
package classifier

import (
	"math"

	"github.com/akhanrex/probedge/internal/domain"
)

// ClassifyPDC derives the Previous Day Context from the prior day's
// range direction and close position within that range.
//
// ok is false when prior is the zero value (no master row available);
// callers must leave PDC nil in that case.
func ClassifyPDC(prior domain.MasterRow, ok bool) (domain.DirTag, bool) {
	if !ok || prior.Range() <= 0 {
		return "", false
	}
	closePos := (prior.Close - prior.Low) / prior.Range()
	switch {
	case prior.Close > prior.Open && closePos >= 0.6:
		return domain.TagBull, true
	case prior.Close < prior.Open && closePos <= 0.4:
		return domain.TagBear, true
	default:
		return domain.TagTR, true
	}
}

// ClassifyOL derives the Open Location from today's 09:15 open relative
// to the previous day's range quartiles.
func ClassifyOL(prior domain.MasterRow, ok bool, todayOpen float64) (domain.OpenLocation, bool) {
	if !ok || prior.Range() <= 0 {
		return "", false
	}
	switch {
	case todayOpen > prior.High:
		return domain.OLAboveRange, true
	case todayOpen >= prior.Low && todayOpen <= prior.High &&
		todayOpen >= minF(prior.Open, prior.Close) && todayOpen <= maxF(prior.Open, prior.Close):
		return domain.OLInsideMid, true
	case todayOpen > prior.Quartile(0.5):
		return domain.OLOpenHigh, true
	case todayOpen >= prior.Low:
		return domain.OLOpenLow, true
	default:
		return domain.OLBelowRange, true
	}
}

// ClassifyOT derives the Opening Trend from the direction and
// persistence of the first five 5-minute bars (09:15-09:40). threshold
// is the minimum cumulative return (as a fraction, e.g. 0.003 = 30bps)
// required alongside a ≥4/5 directional majority.
//
// ok is false when fewer than 5 bars are available.
func ClassifyOT(bars []domain.Bar, threshold float64) (domain.DirTag, bool) {
	if len(bars) < 5 {
		return "", false
	}
	first5 := bars[:5]

	up, down := 0, 0
	for _, b := range first5 {
		switch {
		case b.Close > b.Open:
			up++
		case b.Close < b.Open:
			down++
		}
	}

	open := first5[0].Open
	cumReturn := (first5[4].Close - open) / open

	switch {
	case up >= 4 && cumReturn > threshold:
		return domain.TagBull, true
	case down >= 4 && -cumReturn > threshold:
		return domain.TagBear, true
	default:
		return domain.TagTR, true
	}
}

// First5BarsLow returns the lowest low across the first 5 opening bars,
// used by the plan builder for BULL stop placement.
func First5BarsLow(bars []domain.Bar) float64 {
	low := bars[0].Low
	for _, b := range bars[:5] {
		if b.Low < low {
			low = b.Low
		}
	}
	return low
}

// First5BarsHigh returns the highest high across the first 5 opening
// bars, used by the plan builder for BEAR stop placement.
func First5BarsHigh(bars []domain.Bar) float64 {
	high := bars[0].High
	for _, b := range bars[:5] {
		if b.High > high {
			high = b.High
		}
	}
	return high
}

// ATR5 is the average true range over the first five opening bars (or
// fewer, if fewer are available), used by the plan builder's
// volatility-aware stop placement. The first bar's true range falls
// back to its own high-low since no prior close exists within the
// opening window.
func ATR5(bars []domain.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	n := 5
	if len(bars) < n {
		n = len(bars)
	}
	first := bars[:n]
	prevClose := first[0].Open
	var sum float64
	for _, b := range first {
		sum += trueRange(b, prevClose)
		prevClose = b.Close
	}
	return sum / float64(n)
}

func trueRange(b domain.Bar, prevClose float64) float64 {
	return maxF(b.High-b.Low, maxF(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
