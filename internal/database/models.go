package database

import "strings"

// View is the three-valued sentiment classification.
type View string

const (
	ViewPositive View = "positive"
	ViewNeutral  View = "neutral"
	ViewNegative View = "negative"
)

// ParseView normalizes a sentiment view string to its canonical lowercase
// form. Returns false for anything outside the three-valued enum.
func ParseView(s string) (View, bool) {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case ViewPositive:
		return ViewPositive, true
	case ViewNeutral:
		return ViewNeutral, true
	case ViewNegative:
		return ViewNegative, true
	}
	return "", false
}

// Score maps a view to its fixed sentiment score.
func (v View) Score() float64 {
	switch v {
	case ViewPositive:
		return 0.8
	case ViewNegative:
		return -0.8
	}
	return 0.0
}

// SourceKind identifies the class of source an item came from.
type SourceKind string

const (
	SourceForum SourceKind = "forum"
	SourceNews  SourceKind = "news"
)

// ParseSourceKind normalizes a source kind string.
func ParseSourceKind(s string) (SourceKind, bool) {
	switch SourceKind(strings.ToLower(strings.TrimSpace(s))) {
	case SourceForum:
		return SourceForum, true
	case SourceNews:
		return SourceNews, true
	}
	return "", false
}

// Sentiment is the judgment embedded in an overview record.
type Sentiment struct {
	Summary string `json:"summary"`
	View    View   `json:"view"`
	Tone    string `json:"tone"`
}

// OverviewRecord is the canonical persisted form of one analyzed item.
// ItemID is derived from (source_kind, origin_id) and is the dedup key.
type OverviewRecord struct {
	ItemID         string     `json:"item_id"`
	Ticker         string     `json:"ticker"`
	Date           string     `json:"date"` // YYYY-MM-DD
	Title          string     `json:"title"`
	Sentiment      Sentiment  `json:"sentiment"`
	SentimentScore float64    `json:"sentiment_score"`
	SourceLink     string     `json:"source_link"`
	SourceKind     SourceKind `json:"source_kind"`
	CreatedAt      *string    `json:"created_at,omitempty"`
	UpdatedAt      *string    `json:"updated_at,omitempty"`
}

// SentimentSummary is the per-ticker aggregate, one live row per ticker.
type SentimentSummary struct {
	Ticker              string   `json:"ticker"`
	Total               int      `json:"total"`
	PositiveCount       int      `json:"positive_count"`
	NeutralCount        int      `json:"neutral_count"`
	NegativeCount       int      `json:"negative_count"`
	OverallSentiment    View     `json:"overall_sentiment"`
	AverageConfidence   float64  `json:"average_confidence"`
	TopHeadlines        []string `json:"top_headlines"`
	GeopoliticalSummary string   `json:"geopolitical_summary"`
	MacroSummary        string   `json:"macro_summary"`
	LastUpdated         *string  `json:"last_updated,omitempty"`
}

// TrackedTicker is a symbol the pipeline processes by default.
type TrackedTicker struct {
	ID       int64
	Symbol   string
	IsActive bool
	AddedAt  *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalRecords    int    `json:"total_records"`
	ForumRecords    int    `json:"forum_records"`
	NewsRecords     int    `json:"news_records"`
	DistinctTickers int    `json:"distinct_tickers"`
	Summaries       int    `json:"summaries"`
	TrackedTickers  int    `json:"tracked_tickers"`
	ActiveTickers   int    `json:"active_tickers"`
	LatestDate      string `json:"latest_date"`
}
