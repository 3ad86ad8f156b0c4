package statestore

import (
	"time"

	"github.com/akhanrex/probedge/internal/domain"
)

// wireState mirrors the on-disk live_state.json shape. It exists solely
// at the JSON boundary — internal code always works with
// domain.SystemState.
type wireState struct {
	Meta      wireMeta               `json:"meta"`
	Quotes    map[string]wireQuote   `json:"quotes"`
	Tags      map[string]wireTags    `json:"tags"`
	Positions map[string]wirePos     `json:"positions"`
}

type wireMeta struct {
	Mode           string        `json:"mode"`
	Date           string        `json:"date"`
	Clock          string        `json:"clock"`
	Sim            bool          `json:"sim"`
	PlanStatus     string        `json:"plan_status"`
	PlanBuiltAt    string        `json:"plan_built_at"`
	PlanLocked     bool          `json:"plan_locked"`
	DailyRiskRs    float64       `json:"daily_risk_rs"`
	RiskPerTradeRs float64       `json:"risk_per_trade_rs"`
	TotalPlannedRs float64       `json:"total_planned_risk_rs"`
	ActiveTrades   int           `json:"active_trades"`
	PnL            wirePnL       `json:"pnl"`
	RiskState      wireRiskState `json:"risk_state"`
	BatchAgent     wireAgent     `json:"batch_agent"`
}

type wirePnL struct {
	Day      float64 `json:"day"`
	Open     float64 `json:"open"`
	Realized float64 `json:"realized"`
}

type wireRiskState struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type wireAgent struct {
	Status          string `json:"status"`
	LastHeartbeatTS string `json:"last_heartbeat_ts"`
}

type wireOHLC struct {
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
}

type wireQuote struct {
	LTP       float64  `json:"ltp"`
	OHLC      wireOHLC `json:"ohlc"`
	Volume    int64    `json:"volume"`
	ChangePct float64  `json:"change_pct"`
}

type wireTags struct {
	PDC *string `json:"PDC"`
	OL  *string `json:"OL"`
	OT  *string `json:"OT"`
}

type wirePos struct {
	Status        string  `json:"status"`
	Qty           int     `json:"qty"`
	Direction     string  `json:"direction"`
	EntryPrice    float64 `json:"entry_price"`
	Stop          float64 `json:"stop"`
	TP1           float64 `json:"tp1"`
	TP2           float64 `json:"tp2"`
	OpenPnLRs     float64 `json:"open_pnl_rs"`
	RealizedPnLRs float64 `json:"realized_pnl_rs"`
	ExitReason    string  `json:"exit_reason"`
}

const istLayout = "2006-01-02 15:04:05 IST"

func formatTS(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(istLayout)
}

func parseTS(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(istLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func fromDomain(s domain.SystemState) wireState {
	w := wireState{
		Quotes:    map[string]wireQuote{},
		Tags:      map[string]wireTags{},
		Positions: map[string]wirePos{},
	}
	w.Meta = wireMeta{
		Mode:           string(s.Meta.Mode),
		Date:           s.Meta.Date,
		Clock:          formatTS(s.Meta.Clock),
		Sim:            s.Meta.Sim,
		PlanStatus:     string(s.Meta.PlanStatus),
		PlanBuiltAt:    formatTS(s.Meta.PlanBuiltAt),
		PlanLocked:     s.Meta.PlanLocked,
		DailyRiskRs:    s.Meta.DailyRiskRs,
		RiskPerTradeRs: s.Meta.RiskPerTradeRs,
		TotalPlannedRs: s.Meta.TotalPlannedRs,
		ActiveTrades:   s.Meta.ActiveTrades,
		PnL: wirePnL{
			Day:      s.Meta.PnLDay,
			Open:     s.Meta.PnLOpen,
			Realized: s.Meta.PnLRealized,
		},
		RiskState: wireRiskState{Status: s.Meta.Risk.Status, Reason: s.Meta.Risk.Reason},
		BatchAgent: wireAgent{
			Status:          s.Meta.BatchAgent.Status,
			LastHeartbeatTS: formatTS(s.Meta.BatchAgent.LastHeartbeatTS),
		},
	}
	for sym, q := range s.Quotes {
		w.Quotes[sym] = wireQuote{
			LTP:       q.LTP,
			OHLC:      wireOHLC{O: q.TodayOpen, H: q.RunningHigh, L: q.RunningLow, C: q.LastClose},
			Volume:    q.Volume,
			ChangePct: q.ChangePct,
		}
	}
	for sym, t := range s.Tags {
		w.Tags[sym] = wireTags{
			PDC: dirTagPtrToStr(t.PDC),
			OL:  olPtrToStr(t.OL),
			OT:  dirTagPtrToStr(t.OT),
		}
	}
	for sym, p := range s.Positions {
		w.Positions[sym] = wirePos{
			Status:        string(p.Status),
			Qty:           p.Qty,
			Direction:     string(p.Direction),
			EntryPrice:    p.EntryPrice,
			Stop:          p.Stop,
			TP1:           p.TP1,
			TP2:           p.TP2,
			OpenPnLRs:     p.OpenPnL,
			RealizedPnLRs: p.RealizedPnL,
			ExitReason:    string(p.ExitReason),
		}
	}
	return w
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

func (w wireState) toDomain() domain.SystemState {
	s := domain.NewSystemState(w.Meta.Date, domain.Mode(w.Meta.Mode))
	s.Meta.Clock = parseTS(w.Meta.Clock)
	s.Meta.Sim = w.Meta.Sim
	s.Meta.PlanStatus = domain.SnapshotStatus(w.Meta.PlanStatus)
	s.Meta.PlanBuiltAt = parseTS(w.Meta.PlanBuiltAt)
	s.Meta.PlanLocked = w.Meta.PlanLocked
	s.Meta.DailyRiskRs = w.Meta.DailyRiskRs
	s.Meta.RiskPerTradeRs = w.Meta.RiskPerTradeRs
	s.Meta.TotalPlannedRs = w.Meta.TotalPlannedRs
	s.Meta.ActiveTrades = w.Meta.ActiveTrades
	s.Meta.PnLDay = w.Meta.PnL.Day
	s.Meta.PnLOpen = w.Meta.PnL.Open
	s.Meta.PnLRealized = w.Meta.PnL.Realized
	s.Meta.Risk = domain.RiskState{Status: w.Meta.RiskState.Status, Reason: w.Meta.RiskState.Reason}
	s.Meta.BatchAgent = domain.AgentHB{Status: w.Meta.BatchAgent.Status, LastHeartbeatTS: parseTS(w.Meta.BatchAgent.LastHeartbeatTS)}

	for sym, q := range w.Quotes {
		s.Quotes[sym] = domain.Quote{
			Symbol: sym, LTP: q.LTP, Volume: q.Volume, ChangePct: q.ChangePct,
			TodayOpen: q.OHLC.O, RunningHigh: q.OHLC.H, RunningLow: q.OHLC.L, LastClose: q.OHLC.C,
		}
	}
	for sym, t := range w.Tags {
		tags := domain.Tags{Symbol: sym}
		if t.PDC != nil {
			v := domain.DirTag(*t.PDC)
			tags.PDC = &v
		}
		if t.OL != nil {
			v := domain.OpenLocation(*t.OL)
			tags.OL = &v
		}
		if t.OT != nil {
			v := domain.DirTag(*t.OT)
			tags.OT = &v
		}
		s.Tags[sym] = tags
	}
	for sym, p := range w.Positions {
		s.Positions[sym] = domain.Position{
			Symbol: sym, Status: domain.PositionStatus(p.Status), Qty: p.Qty,
			Direction: domain.DirTag(p.Direction), EntryPrice: p.EntryPrice,
			Stop: p.Stop, TP1: p.TP1, TP2: p.TP2,
			OpenPnL: p.OpenPnLRs, RealizedPnL: p.RealizedPnLRs,
			ExitReason: domain.ExitReason(p.ExitReason),
		}
	}
	return s
}
