package notify_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akhanrex/probedge/internal/adapters/notify"
	"github.com/akhanrex/probedge/internal/domain"
)

func TestReport_PrintPlan(t *testing.T) {
	var buf bytes.Buffer
	r := notify.NewReportWriter(&buf)

	r.PrintPlan(domain.PortfolioPlan{
		Date:             "2026-07-31",
		RiskPerTradeRs:   2000,
		TotalPlannedRisk: 2000,
		ActiveTrades:     1,
		Plans: map[string]domain.PlanRow{
			"ALPHA": {Symbol: "ALPHA", Pick: domain.PickBull, Confidence: 62.5, LevelUsed: domain.LevelL3,
				Entry: 100, Stop: 99.2, TP1: 100.8, TP2: 101.6, Qty: 1250},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "ALPHA")
	assert.Contains(t, out, "BULL")
	assert.Contains(t, out, "L3")
}

func TestReport_PrintPlan_Empty(t *testing.T) {
	var buf bytes.Buffer
	r := notify.NewReportWriter(&buf)
	r.PrintPlan(domain.PortfolioPlan{Date: "2026-07-31"})
	assert.Contains(t, buf.String(), "no plan rows")
}

func TestReport_PrintPositions(t *testing.T) {
	var buf bytes.Buffer
	r := notify.NewReportWriter(&buf)

	r.PrintPositions(map[string]domain.Position{
		"ALPHA": {Symbol: "ALPHA", Status: domain.PositionOpen, Direction: domain.TagBull,
			Qty: 625, EntryPrice: 100, Stop: 100, OpenPnL: 125},
	})

	out := buf.String()
	assert.Contains(t, out, "ALPHA")
	assert.Contains(t, out, "OPEN")
}

func TestReport_PrintPositions_Empty(t *testing.T) {
	var buf bytes.Buffer
	r := notify.NewReportWriter(&buf)
	r.PrintPositions(nil)
	assert.Contains(t, buf.String(), "no positions")
}
