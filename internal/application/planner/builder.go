// Package planner builds the day's portfolio plan at the 09:40 cutover:
// for every symbol with READY tags it runs the frequency-table picker,
// derives entry/stop/targets/quantity, and assembles an immutable
// Snapshot.
package planner

import (
	"fmt"
	"math"
	"time"

	"github.com/akhanrex/probedge/internal/application/classifier"
	"github.com/akhanrex/probedge/internal/application/frequency"
	"github.com/akhanrex/probedge/internal/config"
	"github.com/akhanrex/probedge/internal/domain"
	"github.com/akhanrex/probedge/internal/ports"
)

const minRiskFraction = 0.002 // min_risk_per_share = price * 0.002

// SymbolInput bundles everything the builder needs for one symbol: its
// resolved tags and the first five 09:15-09:40 opening-range bars.
type SymbolInput struct {
	Symbol       string
	Tags         domain.Tags
	OpeningBars  []domain.Bar // exactly the first 5 bars, in order
	ATR5         float64
}

// Build assembles the portfolio plan for date from inputs, against
// table, using cfg for sizing and picker tuning. It never mutates
// inputs and always returns a fully-formed Snapshot — callers decide
// whether to lock and persist it.
func Build(table ports.FrequencyTable, inputs []SymbolInput, universeSize int, date string, mode domain.Mode, builtAt time.Time, cfg config.Config) domain.Snapshot {
	plans := map[string]domain.PlanRow{}
	resolved := 0

	for _, in := range inputs {
		if !in.Tags.Ready() {
			continue
		}
		resolved++

		decision := frequency.Pick(table, in.Symbol, in.Tags, cfg.Picker)
		row := domain.PlanRow{
			Symbol:      in.Symbol,
			Pick:        decision.Pick,
			Confidence:  decision.Confidence,
			LevelUsed:   decision.Level,
			SampleCount: decision.SampleCount,
			Tags:        in.Tags,
		}

		if decision.Pick == domain.PickAbstain {
			plans[in.Symbol] = row
			continue
		}
		if len(in.OpeningBars) < 5 {
			row.Pick = domain.PickAbstain
			row.AbstainReason = "missing_opening_bars"
			plans[in.Symbol] = row
			continue
		}

		built, _ := buildRow(row, in, cfg)
		plans[in.Symbol] = built
	}

	activeTrades := 0
	totalRisk := 0.0
	for _, row := range plans {
		if row.Pick == domain.PickAbstain {
			continue
		}
		activeTrades++
		totalRisk += float64(row.Qty) * row.RiskPerShare
	}

	status := domain.SnapshotReady
	switch {
	case resolved == 0:
		status = domain.SnapshotFailed
	case resolved < universeSize:
		status = domain.SnapshotReadyPartial
	}

	return domain.Snapshot{
		Date:    date,
		Mode:    mode,
		BuiltAt: builtAt,
		Status:  status,
		Locked:  status == domain.SnapshotReady || status == domain.SnapshotReadyPartial,
		Plan: domain.PortfolioPlan{
			Date:             date,
			DailyRiskRs:      cfg.Risk.DailyRs,
			RiskPerTradeRs:   cfg.Risk.PerTradeRs,
			TotalPlannedRisk: totalRisk,
			ActiveTrades:     activeTrades,
			Plans:            plans,
		},
	}
}

func buildRow(row domain.PlanRow, in SymbolInput, cfg config.Config) (domain.PlanRow, bool) {
	entry := in.OpeningBars[4].Close
	row.Entry = entry

	var stop float64
	if row.Pick == domain.PickBull {
		stop = math.Min(classifier.First5BarsLow(in.OpeningBars), entry-cfg.Risk.RAtrMult*in.ATR5)
	} else {
		stop = math.Max(classifier.First5BarsHigh(in.OpeningBars), entry+cfg.Risk.RAtrMult*in.ATR5)
	}
	row.Stop = stop

	r := math.Abs(entry - stop)
	minRisk := entry * minRiskFraction
	if r < minRisk {
		row.Pick = domain.PickAbstain
		row.AbstainReason = "tight_stop"
		return row, false
	}
	row.RiskPerShare = r

	if row.Pick == domain.PickBull {
		row.TP1 = entry + r
		row.TP2 = entry + 2*r
	} else {
		row.TP1 = entry - r
		row.TP2 = entry - 2*r
	}

	qty := int(math.Floor(cfg.Risk.PerTradeRs / r))
	if qty == 0 {
		row.Pick = domain.PickAbstain
		row.AbstainReason = "zero_qty"
		return row, false
	}
	row.Qty = qty
	return row, true
}

// Validate checks the invariants a non-ABSTAIN PlanRow must hold:
// sign(entry-stop) matches direction, targets on the same side, and
// qty*R does not exceed the per-trade risk budget.
func Validate(row domain.PlanRow, riskPerTradeRs float64) error {
	if row.Pick == domain.PickAbstain {
		return nil
	}
	switch row.Pick {
	case domain.PickBull:
		if !(row.Stop < row.Entry && row.TP1 > row.Entry && row.TP2 > row.TP1) {
			return fmt.Errorf("planner: %s BULL row has inconsistent entry/stop/targets", row.Symbol)
		}
	case domain.PickBear:
		if !(row.Stop > row.Entry && row.TP1 < row.Entry && row.TP2 < row.TP1) {
			return fmt.Errorf("planner: %s BEAR row has inconsistent entry/stop/targets", row.Symbol)
		}
	}
	if float64(row.Qty)*row.RiskPerShare > riskPerTradeRs+1e-6 {
		return fmt.Errorf("planner: %s qty*R exceeds risk_per_trade_rs", row.Symbol)
	}
	return nil
}
