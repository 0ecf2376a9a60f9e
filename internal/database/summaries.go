package database

import (
	"database/sql"
	"encoding/json"
	"strings"
)

// UpsertSummary inserts or replaces the sentiment summary for a ticker.
// The store holds at most one live summary per ticker; a later recompute
// silently replaces the previous one.
func (db *DB) UpsertSummary(s *SentimentSummary) error {
	var headlinesJSON *string
	if s.TopHeadlines != nil {
		data, err := json.Marshal(s.TopHeadlines)
		if err != nil {
			return err
		}
		j := string(data)
		headlinesJSON = &j
	}

	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO sentiment_summaries
		(ticker, total, positive_count, neutral_count, negative_count,
		 overall_sentiment, average_confidence, top_headlines,
		 geopolitical_summary, macro_summary, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))`,
		strings.ToUpper(s.Ticker), s.Total, s.PositiveCount, s.NeutralCount,
		s.NegativeCount, string(s.OverallSentiment), s.AverageConfidence,
		headlinesJSON, s.GeopoliticalSummary, s.MacroSummary,
	)
	return err
}

// GetSummary returns the summary for a ticker, or nil if none exists.
func (db *DB) GetSummary(ticker string) (*SentimentSummary, error) {
	row := db.conn.QueryRow(
		`SELECT ticker, total, positive_count, neutral_count, negative_count,
		 overall_sentiment, average_confidence, top_headlines,
		 geopolitical_summary, macro_summary, last_updated
		FROM sentiment_summaries WHERE ticker = ?`, strings.ToUpper(ticker),
	)

	s, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetAllSummaries returns every stored summary, alphabetical by ticker.
func (db *DB) GetAllSummaries() ([]SentimentSummary, error) {
	rows, err := db.conn.Query(
		`SELECT ticker, total, positive_count, neutral_count, negative_count,
		 overall_sentiment, average_confidence, top_headlines,
		 geopolitical_summary, macro_summary, last_updated
		FROM sentiment_summaries ORDER BY ticker ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []SentimentSummary
	for rows.Next() {
		var s SentimentSummary
		var overall string
		var headlinesJSON *string
		if err := rows.Scan(&s.Ticker, &s.Total, &s.PositiveCount, &s.NeutralCount,
			&s.NegativeCount, &overall, &s.AverageConfidence, &headlinesJSON,
			&s.GeopoliticalSummary, &s.MacroSummary, &s.LastUpdated); err != nil {
			return nil, err
		}
		s.OverallSentiment = View(overall)
		if headlinesJSON != nil {
			if err := json.Unmarshal([]byte(*headlinesJSON), &s.TopHeadlines); err != nil {
				s.TopHeadlines = nil
			}
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func scanSummary(row *sql.Row) (*SentimentSummary, error) {
	var s SentimentSummary
	var overall string
	var headlinesJSON *string
	if err := row.Scan(&s.Ticker, &s.Total, &s.PositiveCount, &s.NeutralCount,
		&s.NegativeCount, &overall, &s.AverageConfidence, &headlinesJSON,
		&s.GeopoliticalSummary, &s.MacroSummary, &s.LastUpdated); err != nil {
		return nil, err
	}
	s.OverallSentiment = View(overall)
	if headlinesJSON != nil {
		if err := json.Unmarshal([]byte(*headlinesJSON), &s.TopHeadlines); err != nil {
			s.TopHeadlines = nil
		}
	}
	return &s, nil
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM overview_records", &s.TotalRecords},
		{"SELECT COUNT(*) FROM overview_records WHERE source_kind = 'forum'", &s.ForumRecords},
		{"SELECT COUNT(*) FROM overview_records WHERE source_kind = 'news'", &s.NewsRecords},
		{"SELECT COUNT(DISTINCT ticker) FROM overview_records", &s.DistinctTickers},
		{"SELECT COUNT(*) FROM sentiment_summaries", &s.Summaries},
		{"SELECT COUNT(*) FROM tracked_tickers", &s.TrackedTickers},
		{"SELECT COUNT(*) FROM tracked_tickers WHERE is_active = 1", &s.ActiveTickers},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	var latest *string
	if err := db.conn.QueryRow("SELECT MAX(date) FROM overview_records").Scan(&latest); err != nil {
		return nil, err
	}
	if latest != nil {
		s.LatestDate = *latest
	}

	return s, nil
}
