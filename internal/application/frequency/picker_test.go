package frequency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhanrex/probedge/internal/config"
	"github.com/akhanrex/probedge/internal/domain"
)

type fakeTable struct {
	rows map[string]domain.FreqRow
}

func (f fakeTable) Lookup(symbol string, level domain.Level, key []string) (domain.FreqRow, bool) {
	row, ok := f.rows[fakeKey(symbol, level, key)]
	return row, ok
}

func fakeKey(symbol string, level domain.Level, key []string) string {
	s := symbol
	for _, k := range key {
		s += "|" + k
	}
	_ = level
	return s
}

func defaultCfg() config.PickerConfig {
	return config.PickerConfig{NminL3: 8, NminL2: 12, NminL1: 20, ConfMin: 0.55, TRGuardConf: 0.65}
}

func tagsFor(pdc domain.DirTag, ol domain.OpenLocation, ot domain.DirTag) domain.Tags {
	now := time.Date(2026, 7, 31, 9, 40, 1, 0, time.UTC)
	t := domain.Tags{Symbol: "ALPHA"}
	t = t.WithPDC(pdc, now)
	t = t.WithOL(ol, now)
	t = t.WithOT(ot, now)
	return t
}

func TestPick_L3HighConfidence(t *testing.T) {
	table := fakeTable{rows: map[string]domain.FreqRow{
		fakeKey("ALPHA", domain.LevelL3, []string{"BULL", "OIM", "BULL"}): {Bull: 7, Bear: 2},
	}}
	tags := tagsFor(domain.TagBull, domain.OLInsideMid, domain.TagBull)
	d := Pick(table, "ALPHA", tags, defaultCfg())
	assert.Equal(t, domain.PickBull, d.Pick)
	assert.Equal(t, domain.LevelL3, d.Level)
	require.InDelta(t, 77.77, d.Confidence, 0.1)
}

func TestPick_FallsBackWhenL3BelowNmin(t *testing.T) {
	table := fakeTable{rows: map[string]domain.FreqRow{
		fakeKey("ALPHA", domain.LevelL3, []string{"BULL", "OIM", "BULL"}): {Bull: 3, Bear: 1}, // total 4 < nmin 8
		fakeKey("ALPHA", domain.LevelL2, []string{"OL", "OIM", "BULL"}):  {Bull: 14, Bear: 2},
	}}
	tags := tagsFor(domain.TagBull, domain.OLInsideMid, domain.TagBull)
	d := Pick(table, "ALPHA", tags, defaultCfg())
	assert.Equal(t, domain.PickBull, d.Pick)
	assert.Equal(t, domain.LevelL2, d.Level)
}

func TestPick_L2FallsBackToPDCSubKeyWhenOLBelowNmin(t *testing.T) {
	// Only the (PDC,OT) sub-key clears nmin_l2; (OL,OT) is absent entirely.
	table := fakeTable{rows: map[string]domain.FreqRow{
		fakeKey("ALPHA", domain.LevelL3, []string{"BULL", "OIM", "BULL"}): {Bull: 3, Bear: 1}, // below nmin_l3
		fakeKey("ALPHA", domain.LevelL2, []string{"PDC", "BULL", "BULL"}): {Bull: 15, Bear: 3},
	}}
	tags := tagsFor(domain.TagBull, domain.OLInsideMid, domain.TagBull)
	d := Pick(table, "ALPHA", tags, defaultCfg())
	assert.Equal(t, domain.PickBull, d.Pick)
	assert.Equal(t, domain.LevelL2, d.Level)
	assert.Equal(t, 18, d.SampleCount)
}

func TestPick_L2PrefersLargerSampleSubKeyWhenBothClearNmin(t *testing.T) {
	// Both L2 sub-keys clear nmin_l2; the (PDC,OT) row has more samples
	// and must win even though (OL,OT) is tried first.
	table := fakeTable{rows: map[string]domain.FreqRow{
		fakeKey("ALPHA", domain.LevelL3, []string{"BULL", "OIM", "BULL"}): {Bull: 3, Bear: 1},  // below nmin_l3
		fakeKey("ALPHA", domain.LevelL2, []string{"OL", "OIM", "BULL"}):  {Bull: 7, Bear: 6},  // total 13, conf 0.538 < conf_min
		fakeKey("ALPHA", domain.LevelL2, []string{"PDC", "BULL", "BULL"}): {Bull: 20, Bear: 5}, // total 25, conf 0.8
	}}
	tags := tagsFor(domain.TagBull, domain.OLInsideMid, domain.TagBull)
	d := Pick(table, "ALPHA", tags, defaultCfg())
	assert.Equal(t, domain.PickBull, d.Pick)
	assert.Equal(t, domain.LevelL2, d.Level)
	assert.Equal(t, 25, d.SampleCount)
}

func TestPick_AbstainsBelowConfMin(t *testing.T) {
	table := fakeTable{rows: map[string]domain.FreqRow{
		fakeKey("ALPHA", domain.LevelL3, []string{"BULL", "OIM", "BULL"}): {Bull: 5, Bear: 5},
	}}
	tags := tagsFor(domain.TagBull, domain.OLInsideMid, domain.TagBull)
	d := Pick(table, "ALPHA", tags, defaultCfg())
	assert.Equal(t, domain.PickAbstain, d.Pick)
}

func TestPick_TrendRangeGuard(t *testing.T) {
	table := fakeTable{rows: map[string]domain.FreqRow{
		// L3 conf = 5/9 = 0.556: clears conf_min (0.55) but is under tr_guard_conf (0.65)
		fakeKey("ALPHA", domain.LevelL3, []string{"BULL", "OIM", "TR"}): {Bull: 5, Bear: 4}, // conf 5/9=0.555
	}}
	tags := tagsFor(domain.TagBull, domain.OLInsideMid, domain.TagTR)
	d := Pick(table, "ALPHA", tags, defaultCfg())
	assert.Equal(t, domain.PickAbstain, d.Pick, "OT=TR with L3 conf under tr_guard_conf must abstain")
}

func TestPick_NoDataAtAnyLevel(t *testing.T) {
	table := fakeTable{rows: map[string]domain.FreqRow{}}
	tags := tagsFor(domain.TagBull, domain.OLInsideMid, domain.TagBull)
	d := Pick(table, "ALPHA", tags, defaultCfg())
	assert.Equal(t, domain.PickAbstain, d.Pick)
}

func TestPick_IncompleteTagsAbstain(t *testing.T) {
	table := fakeTable{}
	tags := domain.Tags{Symbol: "ALPHA"}
	d := Pick(table, "ALPHA", tags, defaultCfg())
	assert.Equal(t, domain.PickAbstain, d.Pick)
}
