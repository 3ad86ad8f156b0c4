// Package ticksource provides the live and replay TickSource
// implementations. Both honor: same input produces the same tick
// sequence.
package ticksource

import (
	"context"
	"sort"
	"time"

	"github.com/akhanrex/probedge/internal/adapters/clock"
	"github.com/akhanrex/probedge/internal/domain"
	"github.com/akhanrex/probedge/internal/ports"
)

// Replay synthesizes a deterministic tick stream from closed 5-minute
// bars: each bar is expanded into up to four ticks one minute apart from
// the bar's start (Open, the extreme nearer Open, the other extreme,
// Close; consecutive equal prices are collapsed) so stop/target
// crossings inside a bar are still observable.
type Replay struct {
	clk    *clock.Replay
	ticks  []domain.Tick
	cursor int
}

// NewReplay builds a Replay tick source from bars across all symbols,
// merged into a single chronological sequence.
func NewReplay(clk *clock.Replay, bars map[string][]domain.Bar) *Replay {
	var ticks []domain.Tick
	for _, symBars := range bars {
		for _, b := range symBars {
			ticks = append(ticks, expandBar(b)...)
		}
	}
	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].TS.Before(ticks[j].TS) })
	return &Replay{clk: clk, ticks: ticks}
}

// expandBar turns one closed bar into a short, deterministic sequence
// of ticks: open, the extreme nearer open, the extreme farther from
// open, then close — each one minute apart starting at the bar's open.
func expandBar(b domain.Bar) []domain.Tick {
	prices := orderedExtremes(b)
	out := make([]domain.Tick, 0, len(prices))
	for i, p := range prices {
		out = append(out, domain.Tick{
			Symbol: b.Symbol,
			TS:     b.Start.Add(time.Duration(i) * time.Minute),
			LTP:    p,
			Volume: b.Volume / int64(len(prices)),
		})
	}
	return out
}

func orderedExtremes(b domain.Bar) []float64 {
	distHigh := b.High - b.Open
	distLow := b.Open - b.Low
	if distHigh <= distLow {
		return dedupe([]float64{b.Open, b.High, b.Low, b.Close})
	}
	return dedupe([]float64{b.Open, b.Low, b.High, b.Close})
}

func dedupe(prices []float64) []float64 {
	out := make([]float64, 0, len(prices))
	for i, p := range prices {
		if i > 0 && p == prices[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Next returns the next tick in chronological order, advancing the
// replay clock to its timestamp first so any clock-gated consumer sees
// a consistent view.
func (r *Replay) Next(ctx context.Context) (domain.Tick, error) {
	if r.cursor >= len(r.ticks) {
		return domain.Tick{}, ports.ErrEndOfStream
	}
	select {
	case <-ctx.Done():
		return domain.Tick{}, ctx.Err()
	default:
	}
	t := r.ticks[r.cursor]
	r.cursor++
	r.clk.Advance(t.TS)
	return t, nil
}

func (r *Replay) Mode() domain.Mode { return domain.ModeSim }

func (r *Replay) Close() error { return nil }
