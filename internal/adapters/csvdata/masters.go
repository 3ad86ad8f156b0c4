package csvdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/relvacode/iso8601"

	"github.com/akhanrex/probedge/internal/domain"
)

// HistoricalRow is one aggregated past session for a symbol: its OHLC,
// the three tags that session carried, and the realized directional
// outcome — the raw material the frequency table is built from.
type HistoricalRow struct {
	Symbol  string
	Date    string
	Open    float64
	High    float64
	Low     float64
	Close   float64
	PDC     domain.DirTag
	OL      domain.OpenLocation
	OT      domain.DirTag
	Outcome domain.DirTag // BULL or BEAR; the realized session direction
}

// MastersPath returns the path to a symbol's master statistics CSV.
func MastersPath(root, symbol string) string {
	return filepath.Join(root, fmt.Sprintf("%s_5MINUTE_MASTER.csv", symbol))
}

// LoadMasters reads masters/{SYM}_5MINUTE_MASTER.csv, one row per past
// trading session in ascending date order. Header:
// DateTime,Open,High,Low,Close,PDC,OL,OT,Outcome
func LoadMasters(root, symbol string) ([]HistoricalRow, error) {
	path := MastersPath(root, symbol)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvdata.LoadMasters: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvdata.LoadMasters: parse %q: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csvdata.LoadMasters: %q is empty", path)
	}

	rows := make([]HistoricalRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseMasterRow(symbol, rec)
		if err != nil {
			return nil, fmt.Errorf("csvdata.LoadMasters: %q row %d: %w", path, i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseMasterRow(symbol string, rec []string) (HistoricalRow, error) {
	if len(rec) < 9 {
		return HistoricalRow{}, fmt.Errorf("expected 9 columns, got %d", len(rec))
	}
	ts, err := iso8601.ParseString(rec[0])
	if err != nil {
		return HistoricalRow{}, fmt.Errorf("parse DateTime %q: %w", rec[0], err)
	}
	vals := make([]float64, 4)
	for i, name := range []string{"Open", "High", "Low", "Close"} {
		v, err := strconv.ParseFloat(rec[1+i], 64)
		if err != nil {
			return HistoricalRow{}, fmt.Errorf("parse %s: %w", name, err)
		}
		vals[i] = v
	}
	return HistoricalRow{
		Symbol:  symbol,
		Date:    ts.Format("2006-01-02"),
		Open:    vals[0],
		High:    vals[1],
		Low:     vals[2],
		Close:   vals[3],
		PDC:     domain.DirTag(rec[5]),
		OL:      domain.OpenLocation(rec[6]),
		OT:      domain.DirTag(rec[7]),
		Outcome: domain.DirTag(rec[8]),
	}, nil
}

// PriorDayRow returns the most recent row in rows (rows must already be
// in ascending date order, as LoadMasters produces them).
func PriorDayRow(rows []HistoricalRow) (domain.MasterRow, bool) {
	if len(rows) == 0 {
		return domain.MasterRow{}, false
	}
	last := rows[len(rows)-1]
	return domain.MasterRow{
		Symbol: last.Symbol,
		Open:   last.Open,
		High:   last.High,
		Low:    last.Low,
		Close:  last.Close,
	}, true
}

// MasterStore implements ports.MasterDataSource and ports.FrequencyTable
// over the masters CSVs for the whole universe, loaded once at startup.
type MasterStore struct {
	prior map[string]domain.MasterRow
	freq  map[freqKey]domain.FreqRow
}

type freqKey struct {
	symbol string
	level  domain.Level
	key    string
}

// LoadMasterStore loads masters/{SYM}_5MINUTE_MASTER.csv for every symbol
// in universe and builds both the prior-day lookup and the historical
// frequency table from the same rows. A symbol whose masters file is
// missing is skipped — it will surface later as a data gap (null tags).
func LoadMasterStore(root string, universe []string) (*MasterStore, error) {
	ms := &MasterStore{
		prior: map[string]domain.MasterRow{},
		freq:  map[freqKey]domain.FreqRow{},
	}
	for _, sym := range universe {
		rows, err := LoadMasters(root, sym)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if prior, ok := PriorDayRow(rows); ok {
			ms.prior[sym] = prior
		}
		ms.ingest(rows)
	}
	return ms, nil
}

func (ms *MasterStore) ingest(rows []HistoricalRow) {
	for _, row := range rows {
		outcomeBull := row.Outcome == domain.TagBull
		ms.bump(row.Symbol, domain.LevelL3, []string{string(row.PDC), string(row.OL), string(row.OT)}, outcomeBull)
		// The two L2 sub-keys (OL,OT) and (PDC,OT) share one table, so
		// each is prefixed with the scheme it came from ("OL" / "PDC");
		// the two sub-tables stay disjoint regardless of how the OL and
		// PDC values are spelled.
		ms.bump(row.Symbol, domain.LevelL2, []string{"OL", string(row.OL), string(row.OT)}, outcomeBull)
		ms.bump(row.Symbol, domain.LevelL2, []string{"PDC", string(row.PDC), string(row.OT)}, outcomeBull)
		ms.bump(row.Symbol, domain.LevelL1, []string{string(row.OT)}, outcomeBull)
		ms.bump(row.Symbol, domain.LevelL0, nil, outcomeBull)
	}
}

func (ms *MasterStore) bump(symbol string, level domain.Level, key []string, bull bool) {
	fk := freqKey{symbol: symbol, level: level, key: joinKey(key)}
	row, ok := ms.freq[fk]
	if !ok {
		row = domain.FreqRow{Symbol: symbol, Level: level, Key: key}
	}
	if bull {
		row.Bull++
	} else {
		row.Bear++
	}
	ms.freq[fk] = row
}

func joinKey(key []string) string {
	out := ""
	for i, k := range key {
		if i > 0 {
			out += "|"
		}
		out += k
	}
	return out
}

// PriorDay implements ports.MasterDataSource.
func (ms *MasterStore) PriorDay(symbol string) (domain.MasterRow, bool) {
	row, ok := ms.prior[symbol]
	return row, ok
}

// Lookup implements ports.FrequencyTable.
func (ms *MasterStore) Lookup(symbol string, level domain.Level, key []string) (domain.FreqRow, bool) {
	row, ok := ms.freq[freqKey{symbol: symbol, level: level, key: joinKey(key)}]
	return row, ok
}
