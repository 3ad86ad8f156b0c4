package runtime_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhanrex/probedge/internal/adapters/clock"
	"github.com/akhanrex/probedge/internal/adapters/journal"
	"github.com/akhanrex/probedge/internal/adapters/metrics"
	"github.com/akhanrex/probedge/internal/adapters/notify"
	"github.com/akhanrex/probedge/internal/adapters/snapshotstore"
	"github.com/akhanrex/probedge/internal/adapters/statestore"
	"github.com/akhanrex/probedge/internal/adapters/ticksource"
	"github.com/akhanrex/probedge/internal/application/gate"
	"github.com/akhanrex/probedge/internal/application/paperengine"
	"github.com/akhanrex/probedge/internal/application/runtime"
	"github.com/akhanrex/probedge/internal/config"
	"github.com/akhanrex/probedge/internal/domain"
)

// fakeMasters is a minimal ports.FrequencyTable + ports.MasterDataSource
// stand-in so the test does not depend on reading CSV fixtures.
type fakeMasters struct {
	prior domain.MasterRow
	freq  map[string]domain.FreqRow
}

func (m fakeMasters) PriorDay(symbol string) (domain.MasterRow, bool) {
	return m.prior, true
}

func (m fakeMasters) Lookup(symbol string, level domain.Level, key []string) (domain.FreqRow, bool) {
	row, ok := m.freq[joinKey(level, key)]
	return row, ok
}

func joinKey(level domain.Level, key []string) string {
	out := fmt.Sprintf("%d", level)
	for _, k := range key {
		out += "|" + k
	}
	return out
}

func openingBars() map[string][]domain.Bar {
	start := time.Date(2026, 7, 31, 9, 15, 0, 0, clock.IST())
	mk := func(i int, o, h, l, c float64) domain.Bar {
		return domain.Bar{Symbol: "ALPHA", Start: start.Add(time.Duration(i) * 5 * time.Minute), Open: o, High: h, Low: l, Close: c, Volume: 1000}
	}
	return map[string][]domain.Bar{
		"ALPHA": {
			mk(0, 99.5, 99.8, 99.4, 99.8),
			mk(1, 99.8, 100.0, 99.7, 100.0),
			mk(2, 100.0, 100.2, 99.9, 100.2),
			mk(3, 100.2, 100.4, 100.1, 100.4),
			mk(4, 100.4, 100.6, 100.3, 100.6),
			mk(5, 100.6, 100.7, 100.5, 100.6), // pushes the clock past the OT/plan cutovers
		},
	}
}

func TestRuntime_BuildsPlanAndSeedsPositions(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 7, 31, 9, 15, 0, 0, clock.IST())
	clk := clock.NewReplay(start)
	src := ticksource.NewReplay(clk, openingBars())

	masters := fakeMasters{
		prior: domain.MasterRow{Symbol: "ALPHA", Open: 95, High: 100, Low: 94, Close: 99},
		freq: map[string]domain.FreqRow{
			joinKey(domain.LevelL3, []string{"BULL", "OOH", "BULL"}): {Symbol: "ALPHA", Level: domain.LevelL3, Bull: 10, Bear: 2},
		},
	}

	cfg := config.Config{
		Symbols: []string{"ALPHA"},
		Risk:    config.RiskConfig{DailyRs: 10000, PerTradeRs: 1000, RAtrMult: 1.0},
		Cutovers: config.CutoversConfig{
			PDC: "09:25:00", OL: "09:30:00", OT: "09:40:01", EODFlatten: "15:05:00",
		},
		Picker: config.PickerConfig{
			NminL3: 8, NminL2: 12, NminL1: 20, ConfMin: 0.55, TRGuardConf: 0.65, OTThreshold: 0.003,
		},
	}

	state := statestore.New(filepath.Join(dir, "live_state.json"), domain.NewSystemState("2026-07-31", domain.ModeSim))
	snaps := snapshotstore.New(dir)
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	engine := paperengine.New(paperengine.Config{DailyRiskRs: cfg.Risk.DailyRs}, j)
	reg := metrics.New()

	rt := runtime.New(cfg, runtime.Deps{
		Clock:     clk,
		Ticks:     src,
		State:     state,
		Snapshots: snaps,
		Masters:   masters,
		Engine:    engine,
		Journal:   j,
		Metrics:   reg,
		Report:    notify.NewReport(),
		Gate:      gate.New(cfg.Cutovers),
	}, "2026-07-31")

	require.NoError(t, rt.Reconcile(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rt.Run(ctx))

	final := state.Snapshot()
	require.Contains(t, final.Tags, "ALPHA")
	tags := final.Tags["ALPHA"]
	assert.True(t, tags.Ready())
	assert.Equal(t, domain.TagBull, *tags.PDC)
	assert.Equal(t, domain.TagBull, *tags.OT)

	assert.Equal(t, domain.SnapshotReady, final.Meta.PlanStatus)
	assert.True(t, final.Meta.PlanLocked)

	require.Contains(t, final.Positions, "ALPHA")
	pos := final.Positions["ALPHA"]
	assert.Equal(t, domain.TagBull, pos.Direction)
	assert.Greater(t, pos.OriginalQty, 0)

	snap, ok, err := snaps.Load("2026-07-31")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, snap.Locked)
}

func TestRuntime_ReconcileSkipsLockedPlan(t *testing.T) {
	dir := t.TempDir()
	snaps := snapshotstore.New(dir)
	require.NoError(t, snaps.Write(domain.Snapshot{Date: "2026-07-31", Status: domain.SnapshotReady, Locked: true}))

	state := statestore.New(filepath.Join(dir, "live_state.json"), domain.NewSystemState("2026-07-31", domain.ModeSim))
	clk := clock.NewReplay(time.Date(2026, 7, 31, 9, 15, 0, 0, time.UTC))
	src := ticksource.NewReplay(clk, map[string][]domain.Bar{})
	engine := paperengine.New(paperengine.Config{DailyRiskRs: 10000}, nil)

	cfg := config.Config{Symbols: []string{"ALPHA"}, Cutovers: config.CutoversConfig{
		PDC: "09:25:00", OL: "09:30:00", OT: "09:40:01", EODFlatten: "15:05:00",
	}}

	rt := runtime.New(cfg, runtime.Deps{
		Clock:     clk,
		Ticks:     src,
		State:     state,
		Snapshots: snaps,
		Masters:   fakeMasters{},
		Engine:    engine,
		Gate:      gate.New(cfg.Cutovers),
	}, "2026-07-31")

	require.NoError(t, rt.Reconcile(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, rt.Run(ctx))

	// With no bars at all and the plan already locked, no plan row should
	// have been (re)built for today.
	_, ok, err := snaps.Load("2026-07-31")
	require.NoError(t, err)
	assert.True(t, ok)
}
