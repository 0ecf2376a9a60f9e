package aggregate

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mkarlsen/tickerpulse/internal/database"
)

// mockProvider implements llm.Provider for testing.
type mockProvider struct {
	response string
	err      error
	calls    int
}

func (m *mockProvider) Generate(_ context.Context, _ string, _ int) (string, error) {
	m.calls++
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return true }

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertRecord(t *testing.T, db *database.DB, itemID, ticker, date, title string, view database.View) {
	t.Helper()
	_, err := db.InsertOverview(&database.OverviewRecord{
		ItemID: itemID,
		Ticker: ticker,
		Date:   date,
		Title:  title,
		Sentiment: database.Sentiment{
			Summary: "Summary of " + title,
			View:    view,
			Tone:    "measured",
		},
		SentimentScore: view.Score(),
		SourceKind:     database.SourceNews,
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("AAPL", nil)
	if s.Total != 0 {
		t.Errorf("expected total 0, got %d", s.Total)
	}
	if s.OverallSentiment != database.ViewNeutral {
		t.Errorf("expected neutral overall, got %q", s.OverallSentiment)
	}
	if s.AverageConfidence != 0 {
		t.Errorf("expected confidence 0, got %v", s.AverageConfidence)
	}
	if len(s.TopHeadlines) != 0 {
		t.Errorf("expected no headlines, got %v", s.TopHeadlines)
	}
}

func TestSummarizeMajorityVote(t *testing.T) {
	records := []database.OverviewRecord{
		{Title: "a", Sentiment: database.Sentiment{View: database.ViewPositive}, SentimentScore: 0.8},
		{Title: "b", Sentiment: database.Sentiment{View: database.ViewPositive}, SentimentScore: 0.8},
		{Title: "c", Sentiment: database.Sentiment{View: database.ViewNegative}, SentimentScore: -0.8},
	}

	s := Summarize("aapl", records)
	if s.Ticker != "AAPL" {
		t.Errorf("expected uppercased ticker, got %q", s.Ticker)
	}
	if s.PositiveCount != 2 || s.NegativeCount != 1 || s.NeutralCount != 0 {
		t.Errorf("unexpected counts: %d/%d/%d", s.PositiveCount, s.NeutralCount, s.NegativeCount)
	}
	if s.OverallSentiment != database.ViewPositive {
		t.Errorf("expected positive overall, got %q", s.OverallSentiment)
	}
	if math.Abs(s.AverageConfidence-0.8) > 1e-9 {
		t.Errorf("expected average confidence 0.8, got %v", s.AverageConfidence)
	}
}

func TestSummarizeTieIsNeutral(t *testing.T) {
	records := []database.OverviewRecord{
		{Title: "a", Sentiment: database.Sentiment{View: database.ViewPositive}, SentimentScore: 0.8},
		{Title: "b", Sentiment: database.Sentiment{View: database.ViewNegative}, SentimentScore: -0.8},
	}

	s := Summarize("TSLA", records)
	if s.OverallSentiment != database.ViewNeutral {
		t.Errorf("expected tie to resolve neutral, got %q", s.OverallSentiment)
	}
	if s.AverageConfidence != 0.8 {
		t.Errorf("expected average of absolute scores, got %v", s.AverageConfidence)
	}
}

func TestSummarizeNeutralDilutesConfidence(t *testing.T) {
	records := []database.OverviewRecord{
		{Title: "a", Sentiment: database.Sentiment{View: database.ViewPositive}, SentimentScore: 0.8},
		{Title: "b", Sentiment: database.Sentiment{View: database.ViewNeutral}, SentimentScore: 0},
	}

	s := Summarize("TSLA", records)
	if s.AverageConfidence != 0.4 {
		t.Errorf("expected 0.4, got %v", s.AverageConfidence)
	}
}

func TestSummarizeHeadlinesCapped(t *testing.T) {
	var records []database.OverviewRecord
	for i := 0; i < 8; i++ {
		records = append(records, database.OverviewRecord{
			Title:     string(rune('a' + i)),
			Sentiment: database.Sentiment{View: database.ViewNeutral},
		})
	}

	s := Summarize("NVDA", records)
	if len(s.TopHeadlines) != maxTopHeadlines {
		t.Fatalf("expected %d headlines, got %d", maxTopHeadlines, len(s.TopHeadlines))
	}
	if s.TopHeadlines[0] != "a" || s.TopHeadlines[4] != "e" {
		t.Errorf("expected first records kept in order, got %v", s.TopHeadlines)
	}
}

func TestRecomputePersistsSummary(t *testing.T) {
	db := openTestDB(t)
	insertRecord(t, db, "news:1", "AAPL", "2026-08-20", "Apple rallies on fed pause", database.ViewPositive)
	insertRecord(t, db, "news:2", "AAPL", "2026-08-21", "Apple supply chain strain in china", database.ViewNegative)
	insertRecord(t, db, "news:3", "AAPL", "2026-08-22", "Apple unveils new models", database.ViewPositive)

	mock := &mockProvider{response: `{"narrative": "Tariff and china exposure dominates the risk discussion."}`}
	agg := New(db, mock)

	summary, err := agg.Recompute(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 3 || summary.PositiveCount != 2 {
		t.Errorf("unexpected counts: total=%d positive=%d", summary.Total, summary.PositiveCount)
	}
	if summary.OverallSentiment != database.ViewPositive {
		t.Errorf("expected positive, got %q", summary.OverallSentiment)
	}
	if summary.GeopoliticalSummary != "Tariff and china exposure dominates the risk discussion." {
		t.Errorf("expected provider narrative, got %q", summary.GeopoliticalSummary)
	}
	if mock.calls != 2 {
		t.Errorf("expected one call per narrative, got %d", mock.calls)
	}

	stored, err := db.GetSummary("AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil || stored.Total != 3 {
		t.Fatalf("expected persisted summary, got %+v", stored)
	}
	if stored.LastUpdated == nil {
		t.Error("expected last_updated set")
	}
	if len(stored.TopHeadlines) != 3 {
		t.Errorf("expected 3 headlines, got %d", len(stored.TopHeadlines))
	}
}

func TestRecomputeNarrativeFallback(t *testing.T) {
	db := openTestDB(t)
	insertRecord(t, db, "news:1", "TSLA", "2026-08-20", "Tariffs cloud outlook", database.ViewNegative)

	mock := &mockProvider{err: context.DeadlineExceeded}
	agg := New(db, mock)

	summary, err := agg.Recompute(context.Background(), "TSLA")
	if err != nil {
		t.Fatalf("aggregation must be total, got error: %v", err)
	}
	if !strings.Contains(summary.GeopoliticalSummary, "tariffs") {
		t.Errorf("expected keyword fallback narrative, got %q", summary.GeopoliticalSummary)
	}

	stored, _ := db.GetSummary("TSLA")
	if stored == nil {
		t.Fatal("expected summary persisted despite narrative failure")
	}
}

func TestRecomputeNoKeywordsSkipsProvider(t *testing.T) {
	db := openTestDB(t)
	insertRecord(t, db, "forum:1", "NVDA", "2026-08-20", "Great quarter, buying more", database.ViewPositive)

	mock := &mockProvider{response: `{"narrative": "should not be called"}`}
	agg := New(db, mock)

	summary, err := agg.Recompute(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.calls != 0 {
		t.Errorf("expected no provider calls without keywords, got %d", mock.calls)
	}
	if !strings.Contains(summary.GeopoliticalSummary, "No notable geopolitical signals") {
		t.Errorf("unexpected narrative: %q", summary.GeopoliticalSummary)
	}
	if !strings.Contains(summary.MacroSummary, "No notable macro signals") {
		t.Errorf("unexpected narrative: %q", summary.MacroSummary)
	}
}

func TestRecomputeEmptyTickerWritesNeutralSummary(t *testing.T) {
	db := openTestDB(t)
	agg := New(db, nil)

	summary, err := agg.Recompute(context.Background(), "ZZZZ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 0 || summary.OverallSentiment != database.ViewNeutral {
		t.Errorf("expected empty neutral summary, got %+v", summary)
	}

	stored, _ := db.GetSummary("ZZZZ")
	if stored == nil {
		t.Fatal("expected summary row for empty ticker")
	}
}

func TestRecomputeReplacesPreviousSummary(t *testing.T) {
	db := openTestDB(t)
	insertRecord(t, db, "news:1", "META", "2026-08-20", "Solid quarter", database.ViewPositive)

	agg := New(db, nil)
	if _, err := agg.Recompute(context.Background(), "META"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	insertRecord(t, db, "news:2", "META", "2026-08-21", "Regulator opens probe", database.ViewNegative)
	insertRecord(t, db, "news:3", "META", "2026-08-22", "Ad spend slows", database.ViewNegative)
	if _, err := agg.Recompute(context.Background(), "META"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := db.GetSummary("META")
	if stored.Total != 3 {
		t.Errorf("expected replaced summary with total 3, got %d", stored.Total)
	}
	if stored.OverallSentiment != database.ViewNegative {
		t.Errorf("expected negative after recompute, got %q", stored.OverallSentiment)
	}

	all, _ := db.GetAllSummaries()
	if len(all) != 1 {
		t.Errorf("expected single summary row, got %d", len(all))
	}
}

func TestRecomputeAllWritesEverySummary(t *testing.T) {
	db := openTestDB(t)
	insertRecord(t, db, "news:1", "AAPL", "2026-08-20", "Strong quarter", database.ViewPositive)
	insertRecord(t, db, "news:2", "TSLA", "2026-08-20", "Deliveries slip", database.ViewNegative)

	agg := New(db, nil)
	written := agg.RecomputeAll(context.Background(), []string{"AAPL", "TSLA", "ZZZZ"})
	if written != 3 {
		t.Errorf("expected 3 summaries written, got %d", written)
	}

	all, _ := db.GetAllSummaries()
	if len(all) != 3 {
		t.Errorf("expected 3 summary rows, got %d", len(all))
	}
}
