package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/akhanrex/probedge/internal/config"
	"github.com/akhanrex/probedge/internal/domain"
)

func defaultGate() Gate {
	return New(config.CutoversConfig{PDC: "09:25:00", OL: "09:30:00", OT: "09:40:01", EODFlatten: "15:05:00"})
}

func at(hh, mm, ss int) time.Time {
	return time.Date(2026, 7, 31, hh, mm, ss, 0, time.UTC)
}

func TestGate_TagCutovers(t *testing.T) {
	g := defaultGate()

	assert.False(t, g.Reveal(FieldPDC, at(9, 24, 59), domain.Snapshot{}))
	assert.True(t, g.Reveal(FieldPDC, at(9, 25, 0), domain.Snapshot{}))

	assert.False(t, g.Reveal(FieldOL, at(9, 29, 59), domain.Snapshot{}))
	assert.True(t, g.Reveal(FieldOL, at(9, 30, 0), domain.Snapshot{}))

	assert.False(t, g.Reveal(FieldOT, at(9, 40, 0), domain.Snapshot{}))
	assert.True(t, g.Reveal(FieldOT, at(9, 40, 1), domain.Snapshot{}))
}

func TestGate_QuoteAndOHLCAlwaysTrue(t *testing.T) {
	g := defaultGate()
	assert.True(t, g.Reveal(FieldQuote, at(0, 0, 0), domain.Snapshot{}))
	assert.True(t, g.Reveal(FieldOHLC, at(0, 0, 0), domain.Snapshot{}))
}

func TestGate_PlanRequiresLockedAndReady(t *testing.T) {
	g := defaultGate()
	now := at(9, 41, 0)

	assert.False(t, g.Reveal(FieldPlan, now, domain.Snapshot{Status: domain.SnapshotBuilding, Locked: false}))
	assert.False(t, g.Reveal(FieldPlan, now, domain.Snapshot{Status: domain.SnapshotReady, Locked: false}))
	assert.True(t, g.Reveal(FieldPlan, now, domain.Snapshot{Status: domain.SnapshotReady, Locked: true}))
	assert.True(t, g.Reveal(FieldPlan, now, domain.Snapshot{Status: domain.SnapshotReadyPartial, Locked: true}))
	assert.False(t, g.Reveal(FieldPlan, now, domain.Snapshot{Status: domain.SnapshotFailed, Locked: true}))
}

func TestGate_PastEODFlatten(t *testing.T) {
	g := defaultGate()
	assert.False(t, g.PastEODFlatten(at(15, 4, 59)))
	assert.True(t, g.PastEODFlatten(at(15, 5, 0)))
}
