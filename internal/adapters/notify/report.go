// Package notify renders the day's state to a human — a console table
// for terminal use, independent of the internal state store's JSON
// representation.
package notify

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/akhanrex/probedge/internal/domain"
)

// Report prints a plain-text summary of the day's plan and positions.
type Report struct {
	out io.Writer
}

// NewReport builds a Report writing to stdout.
func NewReport() *Report { return &Report{out: os.Stdout} }

// NewReportWriter builds a Report writing to w, for tests.
func NewReportWriter(w io.Writer) *Report { return &Report{out: w} }

// PrintPlan renders the locked portfolio plan as a table.
func (r *Report) PrintPlan(plan domain.PortfolioPlan) {
	if len(plan.Plans) == 0 {
		fmt.Fprintf(r.out, "no plan rows for %s\n", plan.Date)
		return
	}

	rows := sortedRows(plan.Plans)

	fmt.Fprintf(r.out, "\nplan %s — risk/trade ₹%.0f, total planned ₹%.0f, %d active\n",
		plan.Date, plan.RiskPerTradeRs, plan.TotalPlannedRisk, plan.ActiveTrades)

	table := tablewriter.NewWriter(r.out)
	table.Header("Symbol", "Pick", "Conf", "Level", "Entry", "Stop", "TP1", "TP2", "Qty")
	for _, row := range rows {
		table.Append(
			row.Symbol,
			string(row.Pick),
			fmt.Sprintf("%.1f%%", row.Confidence),
			fmt.Sprintf("L%d", row.LevelUsed),
			fmt.Sprintf("%.2f", row.Entry),
			fmt.Sprintf("%.2f", row.Stop),
			fmt.Sprintf("%.2f", row.TP1),
			fmt.Sprintf("%.2f", row.TP2),
			fmt.Sprintf("%d", row.Qty),
		)
	}
	table.Render()
}

// PrintPositions renders the current position book as a table.
func (r *Report) PrintPositions(positions map[string]domain.Position) {
	if len(positions) == 0 {
		fmt.Fprintln(r.out, "no positions")
		return
	}

	symbols := make([]string, 0, len(positions))
	for sym := range positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	table := tablewriter.NewWriter(r.out)
	table.Header("Symbol", "Status", "Dir", "Qty", "Entry", "Stop", "Open P&L", "Realized P&L", "Exit")
	for _, sym := range symbols {
		p := positions[sym]
		table.Append(
			p.Symbol,
			string(p.Status),
			string(p.Direction),
			fmt.Sprintf("%d", p.Qty),
			fmt.Sprintf("%.2f", p.EntryPrice),
			fmt.Sprintf("%.2f", p.Stop),
			fmt.Sprintf("%.2f", p.OpenPnL),
			fmt.Sprintf("%.2f", p.RealizedPnL),
			string(p.ExitReason),
		)
	}
	table.Render()
}

func sortedRows(plans map[string]domain.PlanRow) []domain.PlanRow {
	out := make([]domain.PlanRow, 0, len(plans))
	for _, row := range plans {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
