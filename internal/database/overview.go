package database

import (
	"database/sql"
	"strings"
)

const overviewColumns = `item_id, ticker, date, title, sentiment_summary, sentiment_view,
	sentiment_tone, sentiment_score, source_link, source_kind, created_at, updated_at`

const defaultOrder = " ORDER BY date DESC, created_at DESC"

// InsertOverview inserts a canonical record if no record with the same
// item_id exists. Returns true when a row was created, false on duplicate.
// The pre-check keeps duplicates countable; the unique index on item_id
// covers the race where two runs insert the same item concurrently.
func (db *DB) InsertOverview(rec *OverviewRecord) (bool, error) {
	existing, err := db.GetByItemID(rec.ItemID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	_, err = db.conn.Exec(
		`INSERT INTO overview_records
		(item_id, ticker, date, title, sentiment_summary, sentiment_view, sentiment_tone,
		 sentiment_score, source_link, source_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ItemID, strings.ToUpper(rec.Ticker), rec.Date, rec.Title,
		rec.Sentiment.Summary, string(rec.Sentiment.View), rec.Sentiment.Tone,
		rec.SentimentScore, rec.SourceLink, string(rec.SourceKind),
	)
	if err != nil {
		// A concurrent insert can win between the pre-check and here.
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetByItemID returns a single record by its item_id, or nil if absent.
func (db *DB) GetByItemID(itemID string) (*OverviewRecord, error) {
	row := db.conn.QueryRow(
		"SELECT "+overviewColumns+" FROM overview_records WHERE item_id = ?", itemID,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetByTicker returns records for a ticker, most recent first, with
// skip/limit pagination. limit <= 0 means no limit.
func (db *DB) GetByTicker(ticker string, skip, limit int) ([]OverviewRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(
		"SELECT "+overviewColumns+" FROM overview_records WHERE ticker = ?"+
			defaultOrder+" LIMIT ? OFFSET ?",
		strings.ToUpper(ticker), limit, skip,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetByTickerAndDate returns records for a ticker on one calendar date.
func (db *DB) GetByTickerAndDate(ticker, date string) ([]OverviewRecord, error) {
	rows, err := db.conn.Query(
		"SELECT "+overviewColumns+" FROM overview_records WHERE ticker = ? AND date = ?"+defaultOrder,
		strings.ToUpper(ticker), date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetByDateRange returns records with start <= date <= end, both inclusive.
// The filter matches the record date, not created_at.
func (db *DB) GetByDateRange(start, end string) ([]OverviewRecord, error) {
	rows, err := db.conn.Query(
		"SELECT "+overviewColumns+" FROM overview_records WHERE date >= ? AND date <= ?"+defaultOrder,
		start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetBySentiment returns records with the given sentiment view.
func (db *DB) GetBySentiment(view View) ([]OverviewRecord, error) {
	rows, err := db.conn.Query(
		"SELECT "+overviewColumns+" FROM overview_records WHERE sentiment_view = ?"+defaultOrder,
		string(view),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetBySourceKind returns records from the given source kind.
func (db *DB) GetBySourceKind(kind SourceKind) ([]OverviewRecord, error) {
	rows, err := db.conn.Query(
		"SELECT "+overviewColumns+" FROM overview_records WHERE source_kind = ?"+defaultOrder,
		string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// CountByTicker returns the number of records stored for a ticker.
func (db *DB) CountByTicker(ticker string) (int, error) {
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM overview_records WHERE ticker = ?", strings.ToUpper(ticker),
	).Scan(&count)
	return count, err
}

// DeleteByTicker removes all records for a ticker and returns the count.
func (db *DB) DeleteByTicker(ticker string) (int64, error) {
	result, err := db.conn.Exec(
		"DELETE FROM overview_records WHERE ticker = ?", strings.ToUpper(ticker),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteByDateRange removes records with start <= date <= end and returns
// the count.
func (db *DB) DeleteByDateRange(start, end string) (int64, error) {
	result, err := db.conn.Exec(
		"DELETE FROM overview_records WHERE date >= ? AND date <= ?", start, end,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanRecords(rows *sql.Rows) ([]OverviewRecord, error) {
	var records []OverviewRecord
	for rows.Next() {
		var r OverviewRecord
		var view, kind string
		if err := rows.Scan(&r.ItemID, &r.Ticker, &r.Date, &r.Title,
			&r.Sentiment.Summary, &view, &r.Sentiment.Tone, &r.SentimentScore,
			&r.SourceLink, &kind, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Sentiment.View = View(view)
		r.SourceKind = SourceKind(kind)
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanRecord(row *sql.Row) (*OverviewRecord, error) {
	var r OverviewRecord
	var view, kind string
	if err := row.Scan(&r.ItemID, &r.Ticker, &r.Date, &r.Title,
		&r.Sentiment.Summary, &view, &r.Sentiment.Tone, &r.SentimentScore,
		&r.SourceLink, &kind, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Sentiment.View = View(view)
	r.SourceKind = SourceKind(kind)
	return &r, nil
}
