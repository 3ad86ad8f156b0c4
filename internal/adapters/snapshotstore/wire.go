package snapshotstore

import (
	"sort"
	"time"

	"github.com/akhanrex/probedge/internal/domain"
)

// wireSnapshot mirrors the on-disk plan_snapshot_YYYY-MM-DD.json shape. It
// exists solely at the JSON boundary — internal code always works with
// domain.Snapshot. The EOD job and UI consume this exact shape, so field
// names and the plans array (not a map) are load-bearing.
type wireSnapshot struct {
	Date    string            `json:"date"`
	Mode    string            `json:"mode"`
	BuiltAt string            `json:"built_at"`
	Status  string            `json:"status"`
	Locked  bool              `json:"locked"`
	Plan    wirePortfolioPlan `json:"portfolio_plan"`
}

type wirePortfolioPlan struct {
	Date               string        `json:"date"`
	DailyRiskRs        float64       `json:"daily_risk_rs"`
	RiskPerTradeRs     float64       `json:"risk_per_trade_rs"`
	TotalPlannedRiskRs float64       `json:"total_planned_risk_rs"`
	ActiveTrades       int           `json:"active_trades"`
	Plans              []wirePlanRow `json:"plans"`
}

type wirePlanRow struct {
	Symbol        string       `json:"symbol"`
	Pick          string       `json:"pick"`
	Confidence    float64      `json:"confidence"`
	Level         int          `json:"level"`
	Entry         float64      `json:"entry"`
	Stop          float64      `json:"stop"`
	TP1           float64      `json:"tp1"`
	TP2           float64      `json:"tp2"`
	Qty           int          `json:"qty"`
	RPerShare     float64      `json:"r_per_share"`
	AbstainReason string       `json:"abstain_reason,omitempty"`
	Tags          wirePlanTags `json:"tags"`
}

// wirePlanTags uses the long-form key names the plan snapshot requires
// (distinct from live_state.json's short PDC/OL/OT tag keys).
type wirePlanTags struct {
	PrevDayContext *string `json:"PrevDayContext"`
	OpenLocation   *string `json:"OpenLocation"`
	OpeningTrend   *string `json:"OpeningTrend"`
}

const snapshotTSLayout = "2006-01-02 15:04:05 IST"

func fromDomainSnapshot(s domain.Snapshot) wireSnapshot {
	w := wireSnapshot{
		Date:    s.Date,
		Mode:    string(s.Mode),
		BuiltAt: formatSnapshotTS(s.BuiltAt),
		Status:  string(s.Status),
		Locked:  s.Locked,
		Plan: wirePortfolioPlan{
			Date:               s.Plan.Date,
			DailyRiskRs:        s.Plan.DailyRiskRs,
			RiskPerTradeRs:     s.Plan.RiskPerTradeRs,
			TotalPlannedRiskRs: s.Plan.TotalPlannedRisk,
			ActiveTrades:       s.Plan.ActiveTrades,
			Plans:              make([]wirePlanRow, 0, len(s.Plan.Plans)),
		},
	}

	symbols := make([]string, 0, len(s.Plan.Plans))
	for sym := range s.Plan.Plans {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		row := s.Plan.Plans[sym]
		w.Plan.Plans = append(w.Plan.Plans, wirePlanRow{
			Symbol:        sym,
			Pick:          string(row.Pick),
			Confidence:    row.Confidence,
			Level:         int(row.LevelUsed),
			Entry:         row.Entry,
			Stop:          row.Stop,
			TP1:           row.TP1,
			TP2:           row.TP2,
			Qty:           row.Qty,
			RPerShare:     row.RiskPerShare,
			AbstainReason: row.AbstainReason,
			Tags: wirePlanTags{
				PrevDayContext: dirTagPtrToStr(row.Tags.PDC),
				OpenLocation:   olPtrToStr(row.Tags.OL),
				OpeningTrend:   dirTagPtrToStr(row.Tags.OT),
			},
		})
	}
	return w
}

func (w wireSnapshot) toDomainSnapshot() domain.Snapshot {
	s := domain.Snapshot{
		Date:    w.Date,
		Mode:    domain.Mode(w.Mode),
		BuiltAt: parseSnapshotTS(w.BuiltAt),
		Status:  domain.SnapshotStatus(w.Status),
		Locked:  w.Locked,
		Plan: domain.PortfolioPlan{
			Date:             w.Plan.Date,
			DailyRiskRs:      w.Plan.DailyRiskRs,
			RiskPerTradeRs:   w.Plan.RiskPerTradeRs,
			TotalPlannedRisk: w.Plan.TotalPlannedRiskRs,
			ActiveTrades:     w.Plan.ActiveTrades,
			Plans:            map[string]domain.PlanRow{},
		},
	}
	for _, row := range w.Plan.Plans {
		s.Plan.Plans[row.Symbol] = domain.PlanRow{
			Symbol:        row.Symbol,
			Pick:          domain.Pick(row.Pick),
			Confidence:    row.Confidence,
			LevelUsed:     domain.Level(row.Level),
			Entry:         row.Entry,
			Stop:          row.Stop,
			TP1:           row.TP1,
			TP2:           row.TP2,
			Qty:           row.Qty,
			RiskPerShare:  row.RPerShare,
			AbstainReason: row.AbstainReason,
			Tags: domain.Tags{
				Symbol: row.Symbol,
				PDC:    strPtrToDirTag(row.Tags.PrevDayContext),
				OL:     strPtrToOL(row.Tags.OpenLocation),
				OT:     strPtrToDirTag(row.Tags.OpeningTrend),
			},
		}
	}
	return s
}

func formatSnapshotTS(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(snapshotTSLayout)
}

func parseSnapshotTS(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(snapshotTSLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func dirTagPtrToStr(v *domain.DirTag) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func olPtrToStr(v *domain.OpenLocation) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func strPtrToDirTag(v *string) *domain.DirTag {
	if v == nil {
		return nil
	}
	t := domain.DirTag(*v)
	return &t
}

func strPtrToOL(v *string) *domain.OpenLocation {
	if v == nil {
		return nil
	}
	t := domain.OpenLocation(*v)
	return &t
}
