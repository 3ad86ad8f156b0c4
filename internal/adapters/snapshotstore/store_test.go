package snapshotstore_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhanrex/probedge/internal/adapters/snapshotstore"
	"github.com/akhanrex/probedge/internal/domain"
)

func mkSnap(date string, locked bool) domain.Snapshot {
	return domain.Snapshot{
		Date:    date,
		Mode:    domain.ModePaper,
		BuiltAt: time.Date(2026, 7, 31, 9, 40, 0, 0, time.UTC),
		Status:  domain.SnapshotReady,
		Locked:  locked,
		Plan: domain.PortfolioPlan{
			Date: date,
			Plans: map[string]domain.PlanRow{
				"ALPHA": {Symbol: "ALPHA", Pick: domain.PickBull, Entry: 100, Stop: 99.2, TP1: 100.8, TP2: 101.6, Qty: 1250},
			},
		},
	}
}

func TestStore_WriteAndLoad(t *testing.T) {
	store := snapshotstore.New(t.TempDir())
	snap := mkSnap("2026-07-31", true)

	require.NoError(t, store.Write(snap))

	loaded, ok, err := store.Load("2026-07-31")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.Date, loaded.Date)
	assert.True(t, loaded.Locked)
	assert.Equal(t, 1250, loaded.Plan.Plans["ALPHA"].Qty)
}

func TestStore_WritesNamedFileWithSnakeCasePlansArray(t *testing.T) {
	dir := t.TempDir()
	store := snapshotstore.New(dir)
	bull := domain.TagBull
	ol := domain.OLInsideMid
	snap := mkSnap("2026-07-31", true)
	row := snap.Plan.Plans["ALPHA"]
	row.Tags = domain.Tags{Symbol: "ALPHA", PDC: &bull, OL: &ol, OT: &bull}
	snap.Plan.Plans["ALPHA"] = row
	require.NoError(t, store.Write(snap))

	data, err := os.ReadFile(filepath.Join(dir, "plan_snapshot_2026-07-31.json"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "portfolio_plan")
	pp := raw["portfolio_plan"].(map[string]any)
	plans, ok := pp["plans"].([]any)
	require.True(t, ok, "plans must be a JSON array, not a map")
	require.Len(t, plans, 1)
	first := plans[0].(map[string]any)
	assert.Equal(t, "ALPHA", first["symbol"])
	assert.Equal(t, "BULL", first["pick"])
	tags := first["tags"].(map[string]any)
	assert.Equal(t, "BULL", tags["PrevDayContext"])
	assert.Equal(t, "OIM", tags["OpenLocation"])
	assert.Equal(t, "BULL", tags["OpeningTrend"])
}

func TestStore_Load_MissingReturnsNotOK(t *testing.T) {
	store := snapshotstore.New(t.TempDir())
	_, ok, err := store.Load("2026-08-01")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Write_RefusesToOverwriteLocked(t *testing.T) {
	store := snapshotstore.New(t.TempDir())
	require.NoError(t, store.Write(mkSnap("2026-07-31", true)))

	err := store.Write(mkSnap("2026-07-31", false))
	assert.Error(t, err)
}

func TestStore_Write_AllowsOverwriteWhenNotLocked(t *testing.T) {
	store := snapshotstore.New(t.TempDir())
	require.NoError(t, store.Write(mkSnap("2026-07-31", false)))
	require.NoError(t, store.Write(mkSnap("2026-07-31", true)))

	loaded, ok, err := store.Load("2026-07-31")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, loaded.Locked)
}
