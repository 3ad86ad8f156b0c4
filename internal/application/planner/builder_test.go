package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhanrex/probedge/internal/config"
	"github.com/akhanrex/probedge/internal/domain"
	"github.com/akhanrex/probedge/internal/ports"
)

type stubTable struct {
	decisionBull bool
}

func (s stubTable) Lookup(symbol string, level domain.Level, key []string) (domain.FreqRow, bool) {
	if level != domain.LevelL3 {
		return domain.FreqRow{}, false
	}
	if s.decisionBull {
		return domain.FreqRow{Bull: 7, Bear: 2}, true
	}
	return domain.FreqRow{Bull: 2, Bear: 7}, true
}

func defaultCfg() config.Config {
	var cfg config.Config
	cfg.Risk.DailyRs = 10000
	cfg.Risk.PerTradeRs = 1000
	cfg.Risk.RAtrMult = 1.0
	cfg.Picker.NminL3 = 8
	cfg.Picker.NminL2 = 12
	cfg.Picker.NminL1 = 20
	cfg.Picker.ConfMin = 0.55
	cfg.Picker.TRGuardConf = 0.65
	return cfg
}

func bar(o, h, l, c float64) domain.Bar {
	return domain.Bar{Open: o, High: h, Low: l, Close: c}
}

// A clean BULL plan: entry=100.00, first-5-bar low=99.20, ATR5=0.60
// -> stop=99.20, R=0.80, tp1=100.80, tp2=101.60, qty=1250.
func TestBuild_CleanBullPlan(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 40, 1, 0, time.UTC)
	tags := domain.Tags{Symbol: "ALPHA"}
	tags = tags.WithPDC(domain.TagBull, now)
	ol := domain.OLInsideMid
	tags.OL = &ol
	tags = tagsWithOT(tags, domain.TagBull, now)

	bars := []domain.Bar{
		bar(100, 100.4, 99.8, 100.1),
		bar(100.1, 100.3, 99.2, 99.9), // first-5-bar low = 99.20
		bar(99.9, 100.2, 99.5, 100.0),
		bar(100.0, 100.3, 99.7, 100.2),
		bar(100.2, 100.5, 99.9, 100.00), // entry = close of 5th bar = 100.00
	}

	snap := Build(stubTable{decisionBull: true}, []SymbolInput{{
		Symbol: "ALPHA", Tags: tags, OpeningBars: bars, ATR5: 0.60,
	}}, 1, "2026-07-31", domain.ModePaper, now, defaultCfg())

	require.Equal(t, domain.SnapshotReady, snap.Status)
	require.True(t, snap.Locked)

	row := snap.Plan.Plans["ALPHA"]
	assert.Equal(t, domain.PickBull, row.Pick)
	assert.InDelta(t, 100.00, row.Entry, 1e-9)
	assert.InDelta(t, 99.20, row.Stop, 1e-9)
	assert.InDelta(t, 0.80, row.RiskPerShare, 1e-9)
	assert.InDelta(t, 100.80, row.TP1, 1e-9)
	assert.InDelta(t, 101.60, row.TP2, 1e-9)
	assert.Equal(t, 1250, row.Qty)

	assert.NoError(t, Validate(row, 1000))
}

func TestBuild_TightStopAbstains(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 40, 1, 0, time.UTC)
	tags := domain.Tags{Symbol: "ALPHA"}
	tags = tags.WithPDC(domain.TagBull, now)
	ol := domain.OLInsideMid
	tags.OL = &ol
	tags = tagsWithOT(tags, domain.TagBull, now)

	bars := []domain.Bar{
		bar(100, 100.05, 99.98, 100.02),
		bar(100.02, 100.06, 99.99, 100.03),
		bar(100.03, 100.07, 100.0, 100.04),
		bar(100.04, 100.08, 100.01, 100.05),
		bar(100.05, 100.09, 100.02, 100.0),
	}

	snap := Build(stubTable{decisionBull: true}, []SymbolInput{{
		Symbol: "ALPHA", Tags: tags, OpeningBars: bars, ATR5: 0.01,
	}}, 1, "2026-07-31", domain.ModePaper, now, defaultCfg())

	row := snap.Plan.Plans["ALPHA"]
	assert.Equal(t, domain.PickAbstain, row.Pick)
	assert.Equal(t, "tight_stop", row.AbstainReason)
}

func TestBuild_ZeroResolvedSymbolsFails(t *testing.T) {
	snap := Build(stubTable{}, nil, 3, "2026-07-31", domain.ModePaper, time.Now(), defaultCfg())
	assert.Equal(t, domain.SnapshotFailed, snap.Status)
	assert.False(t, snap.Locked)
}

func TestBuild_PartialUniverse(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 40, 1, 0, time.UTC)
	tags := domain.Tags{Symbol: "ALPHA"}
	tags = tags.WithPDC(domain.TagBull, now)
	ol := domain.OLInsideMid
	tags.OL = &ol
	tags = tagsWithOT(tags, domain.TagBull, now)
	bars := []domain.Bar{
		bar(100, 100.4, 99.8, 100.1),
		bar(100.1, 100.3, 99.2, 99.9),
		bar(99.9, 100.2, 99.5, 100.0),
		bar(100.0, 100.3, 99.7, 100.2),
		bar(100.2, 100.5, 99.9, 100.00),
	}
	snap := Build(stubTable{decisionBull: true}, []SymbolInput{{
		Symbol: "ALPHA", Tags: tags, OpeningBars: bars, ATR5: 0.60,
	}}, 10, "2026-07-31", domain.ModePaper, now, defaultCfg())
	assert.Equal(t, domain.SnapshotReadyPartial, snap.Status)
	assert.True(t, snap.Locked)
}

func tagsWithOT(t domain.Tags, v domain.DirTag, at time.Time) domain.Tags {
	return t.WithOT(v, at)
}

var _ ports.FrequencyTable = stubTable{}
