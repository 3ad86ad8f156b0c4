// Package paperengine is the intraday paper-execution engine: it owns
// positions, simulates limit-order fills against the tick stream,
// enforces stop-loss and two-target exits, updates P&L, and journals
// fills. It is pure-enough to unit test: callers drive it with ticks
// and wall-clock time, and it returns the fills it produced.
package paperengine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/akhanrex/probedge/internal/domain"
	"github.com/akhanrex/probedge/internal/ports"
)

// Config holds paper-engine sizing and risk settings.
type Config struct {
	DailyRiskRs float64
}

// Engine runs the paper trading simulation against a live tick stream.
type Engine struct {
	cfg     Config
	journal ports.Journal

	positions map[string]domain.Position

	dailyRealized float64
	halted        bool
	haltReason    string
}

// New constructs an Engine. journal may be nil, in which case fills are
// simply not persisted (useful for tests).
func New(cfg Config, journal ports.Journal) *Engine {
	return &Engine{cfg: cfg, journal: journal, positions: map[string]domain.Position{}}
}

// Seed creates PENDING positions for every non-ABSTAIN row in plan. It
// is called exactly once, right after the plan snapshot locks at 09:40.
func (e *Engine) Seed(plan domain.PortfolioPlan) {
	for sym, row := range plan.Plans {
		if row.Pick == domain.PickAbstain {
			continue
		}
		dir := domain.TagBull
		if row.Pick == domain.PickBear {
			dir = domain.TagBear
		}
		e.positions[sym] = domain.Position{
			Symbol:      sym,
			Direction:   dir,
			Qty:         row.Qty,
			OriginalQty: row.Qty,
			EntryPrice:  row.Entry,
			Stop:        row.Stop,
			TP1:         row.TP1,
			TP2:         row.TP2,
			Status:      domain.PositionPending,
		}
	}
}

// Positions returns a read-only copy of the current position set.
func (e *Engine) Positions() map[string]domain.Position {
	out := make(map[string]domain.Position, len(e.positions))
	for k, v := range e.positions {
		out[k] = v
	}
	return out
}

// Halted reports the daily-loss latch state.
func (e *Engine) Halted() (bool, string) { return e.halted, e.haltReason }

// OnTick processes one tick against its symbol's position, if any, and
// returns any fills produced. Ordering discipline: within a single
// tick, SL is checked before TP (conservative); ties are broken against
// the trader (a quote exactly at stop or target closes the position).
func (e *Engine) OnTick(tick domain.Tick) []domain.Fill {
	pos, ok := e.positions[tick.Symbol]
	if !ok {
		return nil
	}

	switch pos.Status {
	case domain.PositionPending:
		if e.halted {
			return nil
		}
		if !crossedEntry(pos, tick.LTP) {
			return nil
		}
		pos.Status = domain.PositionOpen
		pos.OpenedAt = tick.TS
		fill := e.makeFill(tick.Symbol, domain.SideEntry, pos.Qty, pos.EntryPrice, tick.TS, "entry")
		e.positions[tick.Symbol] = pos
		return []domain.Fill{fill}

	case domain.PositionOpen:
		return e.processOpen(pos, tick)

	default:
		return nil
	}
}

func crossedEntry(pos domain.Position, ltp float64) bool {
	if pos.Direction == domain.TagBull {
		return ltp >= pos.EntryPrice
	}
	return ltp <= pos.EntryPrice
}

func (e *Engine) processOpen(pos domain.Position, tick domain.Tick) []domain.Fill {
	pos.OpenPnL = openPnL(pos, tick.LTP)

	if slHit(pos, tick.LTP) {
		fill := e.closeAll(&pos, pos.Stop, tick.TS, domain.ExitSL)
		e.positions[tick.Symbol] = pos
		return []domain.Fill{fill}
	}

	if !pos.TP1Hit && tp1Hit(pos, tick.LTP) {
		fills := e.partialTP1(&pos, tick.TS)
		e.positions[tick.Symbol] = pos
		return fills
	}

	if pos.TP1Hit && tp2Hit(pos, tick.LTP) {
		fill := e.closeAll(&pos, pos.TP2, tick.TS, domain.ExitTP2)
		e.positions[tick.Symbol] = pos
		return []domain.Fill{fill}
	}

	e.positions[tick.Symbol] = pos
	return nil
}

func openPnL(pos domain.Position, ltp float64) float64 {
	if pos.Direction == domain.TagBull {
		return float64(pos.Qty) * (ltp - pos.EntryPrice)
	}
	return float64(pos.Qty) * (pos.EntryPrice - ltp)
}

func slHit(pos domain.Position, ltp float64) bool {
	if pos.Direction == domain.TagBull {
		return ltp <= pos.Stop
	}
	return ltp >= pos.Stop
}

func tp1Hit(pos domain.Position, ltp float64) bool {
	if pos.Direction == domain.TagBull {
		return ltp >= pos.TP1
	}
	return ltp <= pos.TP1
}

func tp2Hit(pos domain.Position, ltp float64) bool {
	if pos.Direction == domain.TagBull {
		return ltp >= pos.TP2
	}
	return ltp <= pos.TP2
}

// partialTP1 exits floor(qty/2) at tp1 and moves the stop on the
// remainder to break-even (entry price).
func (e *Engine) partialTP1(pos *domain.Position, ts time.Time) []domain.Fill {
	exitQty := pos.Qty / 2
	if exitQty == 0 {
		exitQty = pos.Qty
	}
	realized := partialPnL(*pos, exitQty, pos.TP1)
	pos.RealizedPnL += realized
	e.dailyRealized += realized
	pos.Qty -= exitQty
	pos.TP1Hit = true
	pos.Stop = pos.EntryPrice // trail to break-even

	fill := e.makeFill(pos.Symbol, domain.SidePartial, exitQty, pos.TP1, ts, "tp1")

	if pos.Qty == 0 {
		pos.Status = domain.PositionClosed
		pos.ExitReason = domain.ExitTP1
		pos.ClosedAt = ts
	}
	return []domain.Fill{fill}
}

func partialPnL(pos domain.Position, qty int, price float64) float64 {
	if pos.Direction == domain.TagBull {
		return float64(qty) * (price - pos.EntryPrice)
	}
	return float64(qty) * (pos.EntryPrice - price)
}

// closeAll exits the remaining quantity at price with the given reason.
func (e *Engine) closeAll(pos *domain.Position, price float64, ts time.Time, reason domain.ExitReason) domain.Fill {
	realized := partialPnL(*pos, pos.Qty, price)
	pos.RealizedPnL += realized
	fill := e.makeFill(pos.Symbol, domain.SideExit, pos.Qty, price, ts, string(reason))
	pos.Qty = 0
	pos.Status = domain.PositionClosed
	pos.ExitReason = reason
	pos.ClosedAt = ts
	pos.OpenPnL = 0

	e.dailyRealized += realized
	e.checkDailyLossLatch()
	return fill
}

func (e *Engine) checkDailyLossLatch() {
	if e.halted {
		return
	}
	if e.dailyRealized < -e.cfg.DailyRiskRs {
		e.halted = true
		e.haltReason = "daily_loss_limit"
		e.CancelPending()
	}
}

// CancelPending cancels every PENDING position without a fill. Called by
// the daily loss latch and by the kill-switch.
func (e *Engine) CancelPending() {
	for sym, pos := range e.positions {
		if pos.Status != domain.PositionPending {
			continue
		}
		pos.Status = domain.PositionClosed
		pos.ExitReason = domain.ExitKill
		e.positions[sym] = pos
	}
}

// ForceFlat closes every OPEN position at its symbol's latest quote and
// cancels any still-PENDING position, per the 15:05 EOD cutover.
func (e *Engine) ForceFlat(now time.Time, quotes map[string]domain.Quote) []domain.Fill {
	var fills []domain.Fill
	for sym, pos := range e.positions {
		switch pos.Status {
		case domain.PositionOpen:
			q, ok := quotes[sym]
			if !ok {
				slog.Warn("paperengine: no quote for force-flat", "symbol", sym)
				continue
			}
			fill := e.closeAll(&pos, q.LTP, now, domain.ExitTime)
			e.positions[sym] = pos
			fills = append(fills, fill)
		case domain.PositionPending:
			pos.Status = domain.PositionClosed
			pos.ExitReason = domain.ExitTime
			e.positions[sym] = pos
		}
	}
	return fills
}

// KillSwitch flattens every OPEN position at its latest quote and
// cancels PENDING orders without a fill.
func (e *Engine) KillSwitch(now time.Time, quotes map[string]domain.Quote) []domain.Fill {
	var fills []domain.Fill
	for sym, pos := range e.positions {
		if pos.Status != domain.PositionOpen {
			continue
		}
		q, ok := quotes[sym]
		if !ok {
			continue
		}
		fill := e.closeAll(&pos, q.LTP, now, domain.ExitKill)
		e.positions[sym] = pos
		fills = append(fills, fill)
	}
	e.CancelPending()
	return fills
}

func (e *Engine) makeFill(symbol string, side domain.Side, qty int, price float64, ts time.Time, reason string) domain.Fill {
	fill := domain.Fill{
		ID:     uuid.NewString(),
		Symbol: symbol,
		Side:   side,
		Qty:    qty,
		Price:  price,
		TS:     ts,
		Reason: reason,
	}
	if e.journal != nil {
		if err := e.journal.AppendFill(fill); err != nil {
			slog.Warn("paperengine: journal append failed", "err", err, "symbol", symbol)
		}
	}
	return fill
}

// DailyRealized returns the running realized P&L for the day.
func (e *Engine) DailyRealized() float64 { return e.dailyRealized }

// RestoreState rehydrates positions and the daily-loss latch after a
// restart, so no position is double-opened and a HALTED day stays
// HALTED. Used by the runtime's mid-day restart reconciliation path.
func (e *Engine) RestoreState(positions map[string]domain.Position, dailyRealized float64, halted bool, reason string) error {
	if e.positions == nil {
		return fmt.Errorf("paperengine: engine not initialized")
	}
	for sym, pos := range positions {
		e.positions[sym] = pos
	}
	e.dailyRealized = dailyRealized
	e.halted = halted
	e.haltReason = reason
	return nil
}
