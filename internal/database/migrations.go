package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS overview_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id TEXT UNIQUE NOT NULL,
    ticker TEXT NOT NULL,
    date TEXT NOT NULL,
    title TEXT NOT NULL,
    sentiment_summary TEXT,
    sentiment_view TEXT NOT NULL CHECK(sentiment_view IN ('positive', 'neutral', 'negative')),
    sentiment_tone TEXT,
    sentiment_score REAL NOT NULL DEFAULT 0,
    source_link TEXT,
    source_kind TEXT NOT NULL CHECK(source_kind IN ('forum', 'news')),
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sentiment_summaries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker TEXT UNIQUE NOT NULL,
    total INTEGER DEFAULT 0,
    positive_count INTEGER DEFAULT 0,
    neutral_count INTEGER DEFAULT 0,
    negative_count INTEGER DEFAULT 0,
    overall_sentiment TEXT NOT NULL CHECK(overall_sentiment IN ('positive', 'neutral', 'negative')),
    average_confidence REAL DEFAULT 0,
    top_headlines TEXT,
    geopolitical_summary TEXT,
    macro_summary TEXT,
    last_updated TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tracked_tickers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol TEXT UNIQUE NOT NULL,
    is_active INTEGER DEFAULT 1,
    added_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_overview_item_id ON overview_records(item_id);
CREATE INDEX IF NOT EXISTS idx_overview_ticker_date ON overview_records(ticker, date);
CREATE INDEX IF NOT EXISTS idx_overview_date ON overview_records(date);
CREATE INDEX IF NOT EXISTS idx_overview_view ON overview_records(sentiment_view);
CREATE INDEX IF NOT EXISTS idx_summaries_ticker ON sentiment_summaries(ticker);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
