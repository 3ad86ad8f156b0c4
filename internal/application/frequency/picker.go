// Package frequency implements the historical tag-frequency picker:
// given a symbol's resolved tags, it consults the frequency table at
// decreasing specificity (L3 -> L0) and returns a directional pick with
// a confidence score, or ABSTAIN.
package frequency

import (
	"github.com/akhanrex/probedge/internal/config"
	"github.com/akhanrex/probedge/internal/domain"
	"github.com/akhanrex/probedge/internal/ports"
)

// Decision is the picker's output for one symbol, including the
// specificity level actually used and the sample count backing it, for
// observability.
type Decision struct {
	Pick        domain.Pick
	Confidence  float64 // 0..100
	Level       domain.Level
	SampleCount int
}

// Pick runs the picker algorithm for one symbol's tags against table,
// per spec: try L3 with Nmin threshold; fall back L3->L2->L1->L0;
// abstain below conf_min; apply the trend-range guard at L3.
func Pick(table ports.FrequencyTable, symbol string, tags domain.Tags, cfg config.PickerConfig) Decision {
	if !tags.Ready() {
		return Decision{Pick: domain.PickAbstain}
	}
	pdc, ol, ot := string(*tags.PDC), string(*tags.OL), string(*tags.OT)

	type attempt struct {
		level domain.Level
		keys  [][]string
		nmin  int
	}
	// L2 has two sub-keys per spec: (OL,OT) and (PDC,OT). Both are tried;
	// whichever clears Nmin with the larger sample count wins, since a
	// bigger backing sample is the more reliable read at the same
	// specificity level. (OL,OT) is listed first and wins ties.
	attempts := []attempt{
		{domain.LevelL3, [][]string{{pdc, ol, ot}}, cfg.NminL3},
		{domain.LevelL2, [][]string{{"OL", ol, ot}, {"PDC", pdc, ot}}, cfg.NminL2},
		{domain.LevelL1, [][]string{{ot}}, cfg.NminL1},
		{domain.LevelL0, [][]string{nil}, 0},
	}

	var l3Conf float64
	var l3Tried bool

	for _, a := range attempts {
		row, ok := bestRow(table, symbol, a.level, a.keys, a.nmin)
		if !ok {
			continue
		}
		conf := confidence(row)
		if a.level == domain.LevelL3 {
			l3Conf = conf
			l3Tried = true
		}
		if conf < cfg.ConfMin {
			return Decision{Pick: domain.PickAbstain, Level: a.level, SampleCount: row.Total(), Confidence: conf * 100}
		}
		if *tags.OT == domain.TagTR {
			guardConf := conf
			if a.level != domain.LevelL3 {
				// The trend-range guard is defined in terms of the L3
				// confidence specifically; if we never reached an L3
				// row with enough samples, treat it as failing the guard.
				if l3Tried {
					guardConf = l3Conf
				} else {
					guardConf = 0
				}
			}
			if guardConf < cfg.TRGuardConf {
				return Decision{Pick: domain.PickAbstain, Level: a.level, SampleCount: row.Total(), Confidence: conf * 100}
			}
		}
		pick := domain.PickBull
		if row.Bear > row.Bull {
			pick = domain.PickBear
		}
		return Decision{Pick: pick, Level: a.level, SampleCount: row.Total(), Confidence: conf * 100}
	}

	return Decision{Pick: domain.PickAbstain}
}

// bestRow looks up every candidate key at level and returns the one with
// the largest sample count among those clearing nmin. Used for L2, which
// has two competing sub-keys; for every other level keys has one entry.
func bestRow(table ports.FrequencyTable, symbol string, level domain.Level, keys [][]string, nmin int) (domain.FreqRow, bool) {
	var best domain.FreqRow
	found := false
	for _, key := range keys {
		row, ok := table.Lookup(symbol, level, key)
		if !ok || row.Total() < nmin {
			continue
		}
		if !found || row.Total() > best.Total() {
			best = row
			found = true
		}
	}
	return best, found
}

func confidence(row domain.FreqRow) float64 {
	total := row.Total()
	if total == 0 {
		return 0
	}
	maxSide := row.Bull
	if row.Bear > maxSide {
		maxSide = row.Bear
	}
	return float64(maxSide) / float64(total)
}
