// Package journal persists paper-engine fills to a local SQLite database
// (pure Go, no cgo) so a day's execution history survives process
// restarts and can be replayed into a console report.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/akhanrex/probedge/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS fills (
    id         TEXT PRIMARY KEY,
    symbol     TEXT NOT NULL,
    side       TEXT NOT NULL,
    qty        INTEGER NOT NULL,
    price      REAL NOT NULL,
    ts         DATETIME NOT NULL,
    reason     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_pnl (
    date       TEXT PRIMARY KEY,
    realized   REAL NOT NULL DEFAULT 0,
    halted     INTEGER NOT NULL DEFAULT 0,
    halt_reason TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_fills_symbol ON fills(symbol);
CREATE INDEX IF NOT EXISTS idx_fills_ts     ON fills(ts DESC);
`

// retention bounds how long fill rows are kept; Probedge is an intraday
// tool and has no use for execution history beyond a couple of weeks.
const retention = 14 * 24 * time.Hour

// Store implements ports.Journal on top of SQLite.
type Store struct {
	db *sql.DB
}

// Open creates (or reopens) the journal database at path, applies the
// schema, and prunes fills older than the retention window.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal.Open: apply schema: %w", err)
	}

	s := &Store{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// AppendFill persists a single fill row. Implements ports.Journal.
func (s *Store) AppendFill(fill domain.Fill) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO fills (id, symbol, side, qty, price, ts, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fill.ID, fill.Symbol, string(fill.Side), fill.Qty, fill.Price, fill.TS.UTC(), fill.Reason,
	)
	if err != nil {
		return fmt.Errorf("journal.AppendFill: %w", err)
	}
	return nil
}

// FillsForSymbol returns every fill recorded for symbol on the given
// trading day, oldest first.
func (s *Store) FillsForSymbol(ctx context.Context, date, symbol string) ([]domain.Fill, error) {
	dayStart, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("journal.FillsForSymbol: parse date %q: %w", date, err)
	}
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, qty, price, ts, reason
		FROM fills
		WHERE symbol = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC
	`, symbol, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		return nil, fmt.Errorf("journal.FillsForSymbol: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var side string
		if err := rows.Scan(&f.ID, &f.Symbol, &side, &f.Qty, &f.Price, &f.TS, &f.Reason); err != nil {
			return nil, fmt.Errorf("journal.FillsForSymbol: scan: %w", err)
		}
		f.Side = domain.Side(side)
		out = append(out, f)
	}
	return out, rows.Err()
}

// SaveDailyPnL upserts the running daily realized P&L and risk-latch
// state, so a restart mid-session can restore the halted flag exactly.
func (s *Store) SaveDailyPnL(ctx context.Context, date string, realized float64, halted bool, reason string) error {
	haltedInt := 0
	if halted {
		haltedInt = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_pnl (date, realized, halted, halt_reason)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			realized    = excluded.realized,
			halted      = excluded.halted,
			halt_reason = excluded.halt_reason
	`, date, realized, haltedInt, reason)
	if err != nil {
		return fmt.Errorf("journal.SaveDailyPnL: %w", err)
	}
	return nil
}

// LoadDailyPnL returns the persisted realized P&L and latch state for
// date, or ok=false if nothing has been saved yet.
func (s *Store) LoadDailyPnL(ctx context.Context, date string) (realized float64, halted bool, reason string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT realized, halted, halt_reason FROM daily_pnl WHERE date = ?`, date)
	var haltedInt int
	if scanErr := row.Scan(&realized, &haltedInt, &reason); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return 0, false, "", false, nil
		}
		return 0, false, "", false, fmt.Errorf("journal.LoadDailyPnL: %w", scanErr)
	}
	return realized, haltedInt == 1, reason, true, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retention)
	s.db.ExecContext(ctx, `DELETE FROM fills WHERE ts < ?`, cutoff)
}
