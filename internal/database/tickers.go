package database

import (
	"database/sql"
	"strings"
)

// InsertTicker adds a symbol to the tracked set. Returns the ID on success,
// 0 if the symbol is already tracked.
func (db *DB) InsertTicker(symbol string) (int64, error) {
	result, err := db.conn.Exec(
		"INSERT OR IGNORE INTO tracked_tickers (symbol) VALUES (?)",
		strings.ToUpper(strings.TrimSpace(symbol)),
	)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, nil
	}
	return result.LastInsertId()
}

// SeedTickers inserts any of the given symbols not yet tracked.
// Returns the number of newly added symbols.
func (db *DB) SeedTickers(symbols []string) (int, error) {
	added := 0
	for _, sym := range symbols {
		id, err := db.InsertTicker(sym)
		if err != nil {
			return added, err
		}
		if id > 0 {
			added++
		}
	}
	return added, nil
}

// GetAllTickers returns every tracked ticker, alphabetical by symbol.
func (db *DB) GetAllTickers() ([]TrackedTicker, error) {
	return db.queryTickers("SELECT id, symbol, is_active, added_at FROM tracked_tickers ORDER BY symbol ASC")
}

// GetActiveTickers returns only the active tracked tickers.
func (db *DB) GetActiveTickers() ([]TrackedTicker, error) {
	return db.queryTickers("SELECT id, symbol, is_active, added_at FROM tracked_tickers WHERE is_active = 1 ORDER BY symbol ASC")
}

// GetTicker returns a tracked ticker by symbol, or nil if absent.
func (db *DB) GetTicker(symbol string) (*TrackedTicker, error) {
	row := db.conn.QueryRow(
		"SELECT id, symbol, is_active, added_at FROM tracked_tickers WHERE symbol = ?",
		strings.ToUpper(strings.TrimSpace(symbol)),
	)

	var t TrackedTicker
	var active int
	if err := row.Scan(&t.ID, &t.Symbol, &active, &t.AddedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	t.IsActive = active != 0
	return &t, nil
}

// ToggleTicker flips the active state of a tracked symbol.
func (db *DB) ToggleTicker(symbol string) error {
	_, err := db.conn.Exec(
		"UPDATE tracked_tickers SET is_active = NOT is_active WHERE symbol = ?",
		strings.ToUpper(strings.TrimSpace(symbol)),
	)
	return err
}

// DeleteTicker removes a symbol from the tracked set.
func (db *DB) DeleteTicker(symbol string) error {
	_, err := db.conn.Exec(
		"DELETE FROM tracked_tickers WHERE symbol = ?",
		strings.ToUpper(strings.TrimSpace(symbol)),
	)
	return err
}

func (db *DB) queryTickers(query string, args ...any) ([]TrackedTicker, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickers []TrackedTicker
	for rows.Next() {
		var t TrackedTicker
		var active int
		if err := rows.Scan(&t.ID, &t.Symbol, &active, &t.AddedAt); err != nil {
			return nil, err
		}
		t.IsActive = active != 0
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}
