// Package csvdata reads the read-only input CSVs: per-symbol 5-minute
// intraday bars and per-symbol master session statistics.
package csvdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/relvacode/iso8601"

	"github.com/akhanrex/probedge/internal/domain"
)

// IntradayPath returns the path to a symbol's 5-minute CSV under root.
func IntradayPath(root, symbol string) string {
	return filepath.Join(root, fmt.Sprintf("%s_5minute.csv", symbol))
}

// LoadIntraday reads intraday/{SYM}_5minute.csv and returns its bars in
// file order. Header: DateTime,Open,High,Low,Close,Volume.
func LoadIntraday(root, symbol string) ([]domain.Bar, error) {
	path := IntradayPath(root, symbol)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvdata.LoadIntraday: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvdata.LoadIntraday: parse %q: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csvdata.LoadIntraday: %q is empty", path)
	}

	bars := make([]domain.Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		bar, err := parseIntradayRow(symbol, rec)
		if err != nil {
			return nil, fmt.Errorf("csvdata.LoadIntraday: %q row %d: %w", path, i+2, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseIntradayRow(symbol string, rec []string) (domain.Bar, error) {
	if len(rec) < 6 {
		return domain.Bar{}, fmt.Errorf("expected 6 columns, got %d", len(rec))
	}
	ts, err := iso8601.ParseString(rec[0])
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parse DateTime %q: %w", rec[0], err)
	}
	o, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parse Open: %w", err)
	}
	h, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parse High: %w", err)
	}
	l, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parse Low: %w", err)
	}
	c, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parse Close: %w", err)
	}
	v, err := strconv.ParseInt(rec[5], 10, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parse Volume: %w", err)
	}
	return domain.Bar{
		Symbol: symbol,
		Start:  domain.WindowStart(ts),
		Open:   o,
		High:   h,
		Low:    l,
		Close:  c,
		Volume: v,
	}, nil
}
