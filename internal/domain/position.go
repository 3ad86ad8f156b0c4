package domain

import "time"

// PositionStatus is the lifecycle state of a paper position.
type PositionStatus string

const (
	PositionPending PositionStatus = "PENDING"
	PositionOpen    PositionStatus = "OPEN"
	PositionClosed  PositionStatus = "CLOSED"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitSL   ExitReason = "SL"
	ExitTP1  ExitReason = "TP1"
	ExitTP2  ExitReason = "TP2"
	ExitTime ExitReason = "TIME"
	ExitKill ExitReason = "KILL"
)

// Side indicates the originating OrderExecutor-level action of a Fill.
type Side string

const (
	SideEntry    Side = "ENTRY"
	SideExit     Side = "EXIT"
	SidePartial  Side = "PARTIAL"
)

// Position is a live simulated paper trade for one symbol.
type Position struct {
	Symbol       string
	Direction    DirTag // BULL or BEAR; never TR
	Qty          int    // remaining open quantity
	OriginalQty  int
	EntryPrice   float64
	Stop         float64
	TP1          float64
	TP2          float64
	Status       PositionStatus
	OpenPnL      float64
	RealizedPnL  float64
	ExitReason   ExitReason
	TP1Hit       bool
	OpenedAt     time.Time
	ClosedAt     time.Time
}

// Fill is an append-only execution journal row.
type Fill struct {
	ID     string
	Symbol string
	Side   Side
	Qty    int
	Price  float64
	TS     time.Time
	Reason string
}

// RiskState is the one-way-per-day daily-loss latch.
type RiskState struct {
	Status string // NORMAL | HALTED
	Reason string
}

// AgentHB is a component liveness heartbeat.
type AgentHB struct {
	Component       string
	Status          string // OK | WARN | DOWN
	LastHeartbeatTS time.Time
}
