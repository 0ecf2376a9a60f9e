package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mkarlsen/tickerpulse/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestServer(t *testing.T, db *database.DB) *Server {
	t.Helper()
	srv, err := New(db)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func seedRecord(t *testing.T, db *database.DB, itemID, ticker, date string, view database.View, kind database.SourceKind) {
	t.Helper()
	created, err := db.InsertOverview(&database.OverviewRecord{
		ItemID: itemID,
		Ticker: ticker,
		Date:   date,
		Title:  "Record " + itemID,
		Sentiment: database.Sentiment{
			Summary: "Summary for " + itemID,
			View:    view,
			Tone:    "measured",
		},
		SentimentScore: view.Score(),
		SourceLink:     "https://example.com/" + itemID,
		SourceKind:     kind,
	})
	if err != nil || !created {
		t.Fatalf("failed to seed record %s: created=%v err=%v", itemID, created, err)
	}
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, rec.Body.String())
	}
	return m
}

func TestHealthRoute(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	rec := doRequest(srv, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if got := decodeBody(t, rec)["status"]; got != "healthy" {
		t.Errorf("expected status healthy, got %v", got)
	}
}

func TestSearchRoute(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, "forum:a1", "AAPL", "2026-08-20", database.ViewPositive, database.SourceForum)
	seedRecord(t, db, "forum:a2", "AAPL", "2026-08-20", database.ViewNegative, database.SourceForum)
	seedRecord(t, db, "forum:a3", "AAPL", "2026-08-19", database.ViewNeutral, database.SourceForum)
	seedRecord(t, db, "forum:t1", "TSLA", "2026-08-20", database.ViewPositive, database.SourceForum)
	srv := newTestServer(t, db)

	rec := doRequest(srv, "POST", "/api/overview/search", `{"ticker": "aapl", "date": "2026-08-20"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "success" {
		t.Errorf("expected success status, got %v", body["status"])
	}
	if body["ticker"] != "AAPL" {
		t.Errorf("expected normalized ticker AAPL, got %v", body["ticker"])
	}
	if body["count"] != float64(2) {
		t.Errorf("expected count 2, got %v", body["count"])
	}
}

func TestSearchRouteEmptyResult(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	rec := doRequest(srv, "POST", "/api/overview/search", `{"ticker": "MSFT", "date": "2026-08-20"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["count"] != float64(0) {
		t.Errorf("expected count 0, got %v", body["count"])
	}
	if _, ok := body["records"].([]any); !ok {
		t.Errorf("expected records to be a JSON array, got %T", body["records"])
	}
}

func TestSearchRouteValidation(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"ticker": `},
		{"missing ticker", `{"date": "2026-08-20"}`},
		{"non-alphabetic ticker", `{"ticker": "AAPL1", "date": "2026-08-20"}`},
		{"ticker too long", `{"ticker": "ABCDEFGHIJK", "date": "2026-08-20"}`},
		{"bad date format", `{"ticker": "AAPL", "date": "08/20/2026"}`},
		{"impossible date", `{"ticker": "AAPL", "date": "2026-02-30"}`},
	}
	for _, tc := range cases {
		rec := doRequest(srv, "POST", "/api/overview/search", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, rec.Code)
		}
		if body := decodeBody(t, rec); body["status"] != "error" {
			t.Errorf("%s: expected error status, got %v", tc.name, body["status"])
		}
	}
}

func TestSearchRangeRoute(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, "news:r1", "AAPL", "2026-08-18", database.ViewPositive, database.SourceNews)
	seedRecord(t, db, "news:r2", "AAPL", "2026-08-19", database.ViewNeutral, database.SourceNews)
	seedRecord(t, db, "news:r3", "TSLA", "2026-08-21", database.ViewNegative, database.SourceNews)
	seedRecord(t, db, "news:r4", "TSLA", "2026-08-22", database.ViewPositive, database.SourceNews)
	srv := newTestServer(t, db)

	rec := doRequest(srv, "POST", "/api/overview/search/range",
		`{"start_date": "2026-08-19", "end_date": "2026-08-21"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	// Both endpoint dates are included.
	if body := decodeBody(t, rec); body["count"] != float64(2) {
		t.Errorf("expected count 2, got %v", body["count"])
	}

	rec = doRequest(srv, "POST", "/api/overview/search/range", `{"start_date": "2026-08-19"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing end_date, got %d", rec.Code)
	}
}

func TestByTickerRoute(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, "forum:p1", "AAPL", "2026-08-18", database.ViewPositive, database.SourceForum)
	seedRecord(t, db, "forum:p2", "AAPL", "2026-08-19", database.ViewPositive, database.SourceForum)
	seedRecord(t, db, "forum:p3", "AAPL", "2026-08-20", database.ViewPositive, database.SourceForum)
	srv := newTestServer(t, db)

	// Lowercase path params normalize the same as body fields.
	rec := doRequest(srv, "GET", "/api/overview/ticker/aapl", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["ticker"] != "AAPL" {
		t.Errorf("expected normalized ticker AAPL, got %v", body["ticker"])
	}
	if body["count"] != float64(3) {
		t.Errorf("expected count 3, got %v", body["count"])
	}

	rec = doRequest(srv, "GET", "/api/overview/ticker/AAPL?skip=1&limit=1", "")
	body = decodeBody(t, rec)
	if body["count"] != float64(1) {
		t.Fatalf("expected count 1 with skip=1&limit=1, got %v", body["count"])
	}
	records := body["records"].([]any)
	first := records[0].(map[string]any)
	if first["date"] != "2026-08-19" {
		t.Errorf("expected second-newest record 2026-08-19, got %v", first["date"])
	}
}

func TestByTickerRejectsBadPagination(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	for _, path := range []string{
		"/api/overview/ticker/AAPL?skip=-1",
		"/api/overview/ticker/AAPL?limit=abc",
	} {
		rec := doRequest(srv, "GET", path, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestBySentimentRoute(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, "forum:s1", "AAPL", "2026-08-20", database.ViewPositive, database.SourceForum)
	seedRecord(t, db, "forum:s2", "TSLA", "2026-08-20", database.ViewPositive, database.SourceForum)
	seedRecord(t, db, "forum:s3", "AAPL", "2026-08-20", database.ViewNegative, database.SourceForum)
	srv := newTestServer(t, db)

	rec := doRequest(srv, "GET", "/api/overview/sentiment/positive", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["count"] != float64(2) {
		t.Errorf("expected 2 positive records, got %v", body["count"])
	}

	rec = doRequest(srv, "GET", "/api/overview/sentiment/bullish", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown sentiment, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); !strings.Contains(body["error"].(string), "positive, neutral, or negative") {
		t.Errorf("expected enum hint in error, got %v", body["error"])
	}
}

func TestBySourceRoute(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, "forum:k1", "AAPL", "2026-08-20", database.ViewNeutral, database.SourceForum)
	seedRecord(t, db, "news:k2", "AAPL", "2026-08-20", database.ViewNeutral, database.SourceNews)
	srv := newTestServer(t, db)

	rec := doRequest(srv, "GET", "/api/overview/source/news", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["count"] != float64(1) {
		t.Errorf("expected 1 news record, got %v", body["count"])
	}

	rec = doRequest(srv, "GET", "/api/overview/source/rss", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown source kind, got %d", rec.Code)
	}
}

func TestDeleteTickerRoute(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, "forum:d1", "AAPL", "2026-08-20", database.ViewPositive, database.SourceForum)
	seedRecord(t, db, "forum:d2", "AAPL", "2026-08-19", database.ViewNegative, database.SourceForum)
	seedRecord(t, db, "forum:d3", "TSLA", "2026-08-20", database.ViewNeutral, database.SourceForum)
	srv := newTestServer(t, db)

	rec := doRequest(srv, "DELETE", "/api/overview/ticker/aapl", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["deleted"] != float64(2) {
		t.Errorf("expected 2 deleted, got %v", body["deleted"])
	}

	if count, _ := db.CountByTicker("AAPL"); count != 0 {
		t.Errorf("expected 0 AAPL records after delete, got %d", count)
	}
	if count, _ := db.CountByTicker("TSLA"); count != 1 {
		t.Errorf("expected TSLA records untouched, got %d", count)
	}
}

func TestDeleteRangeRoute(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, "forum:e1", "AAPL", "2026-08-18", database.ViewPositive, database.SourceForum)
	seedRecord(t, db, "forum:e2", "AAPL", "2026-08-19", database.ViewPositive, database.SourceForum)
	seedRecord(t, db, "forum:e3", "AAPL", "2026-08-20", database.ViewPositive, database.SourceForum)
	srv := newTestServer(t, db)

	rec := doRequest(srv, "DELETE", "/api/overview/range?start_date=2026-08-18&end_date=2026-08-19", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["deleted"] != float64(2) {
		t.Errorf("expected 2 deleted, got %v", body["deleted"])
	}
	if count, _ := db.CountByTicker("AAPL"); count != 1 {
		t.Errorf("expected 1 record left, got %d", count)
	}

	rec = doRequest(srv, "DELETE", "/api/overview/range?start_date=2026-08-18", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing end_date, got %d", rec.Code)
	}
}

func TestSummaryRoute(t *testing.T) {
	db := openTestDB(t)
	srv := newTestServer(t, db)

	rec := doRequest(srv, "GET", "/api/sentiment/AAPL", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before aggregation, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); !strings.Contains(body["error"].(string), "no sentiment summary") {
		t.Errorf("expected not-found message, got %v", body["error"])
	}

	err := db.UpsertSummary(&database.SentimentSummary{
		Ticker:              "AAPL",
		Total:               3,
		PositiveCount:       2,
		NegativeCount:       1,
		OverallSentiment:    database.ViewPositive,
		AverageConfidence:   0.8,
		TopHeadlines:        []string{"Apple beats on earnings"},
		GeopoliticalSummary: "No notable geopolitical signals in the current discussion.",
		MacroSummary:        "No notable macro signals in the current discussion.",
	})
	if err != nil {
		t.Fatalf("failed to upsert summary: %v", err)
	}

	rec = doRequest(srv, "GET", "/api/sentiment/aapl", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	summary, ok := body["summary"].(map[string]any)
	if !ok {
		t.Fatalf("expected summary object, got %T", body["summary"])
	}
	if summary["overall_sentiment"] != "positive" {
		t.Errorf("expected positive overall sentiment, got %v", summary["overall_sentiment"])
	}
	if summary["total"] != float64(3) {
		t.Errorf("expected total 3, got %v", summary["total"])
	}
}

func TestStatusRoute(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, "forum:st1", "AAPL", "2026-08-19", database.ViewPositive, database.SourceForum)
	seedRecord(t, db, "news:st2", "AAPL", "2026-08-20", database.ViewNeutral, database.SourceNews)
	srv := newTestServer(t, db)

	rec := doRequest(srv, "GET", "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	stats, ok := decodeBody(t, rec)["stats"].(map[string]any)
	if !ok {
		t.Fatal("expected stats object in response")
	}
	if stats["total_records"] != float64(2) {
		t.Errorf("expected 2 total records, got %v", stats["total_records"])
	}
	if stats["forum_records"] != float64(1) || stats["news_records"] != float64(1) {
		t.Errorf("expected 1 forum + 1 news record, got %v/%v",
			stats["forum_records"], stats["news_records"])
	}
	if stats["latest_date"] != "2026-08-20" {
		t.Errorf("expected latest date 2026-08-20, got %v", stats["latest_date"])
	}
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	err := db.UpsertSummary(&database.SentimentSummary{
		Ticker:           "AAPL",
		Total:            5,
		PositiveCount:    4,
		NegativeCount:    1,
		OverallSentiment: database.ViewPositive,
	})
	if err != nil {
		t.Fatalf("failed to upsert summary: %v", err)
	}
	srv := newTestServer(t, db)

	rec := doRequest(srv, "GET", "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "TickerPulse") {
		t.Error("expected 'TickerPulse' in response body")
	}
	if !strings.Contains(body, "/ticker/AAPL") {
		t.Error("expected link to AAPL detail page")
	}
}

func TestIndexRouteEmpty(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	rec := doRequest(srv, "GET", "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No summaries yet") {
		t.Error("expected empty state in response body")
	}
}

func TestTickerPageRoute(t *testing.T) {
	db := openTestDB(t)
	seedRecord(t, db, "forum:pg1", "AAPL", "2026-08-20", database.ViewPositive, database.SourceForum)
	err := db.UpsertSummary(&database.SentimentSummary{
		Ticker:              "AAPL",
		Total:               1,
		PositiveCount:       1,
		OverallSentiment:    database.ViewPositive,
		AverageConfidence:   0.8,
		GeopoliticalSummary: "Tariff headlines dominate the discussion.",
		MacroSummary:        "Rate cut expectations are firming.",
	})
	if err != nil {
		t.Fatalf("failed to upsert summary: %v", err)
	}
	srv := newTestServer(t, db)

	rec := doRequest(srv, "GET", "/ticker/AAPL", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Record forum:pg1") {
		t.Error("expected seeded record title in response")
	}
	if !strings.Contains(body, "Tariff headlines") {
		t.Error("expected geopolitical narrative in response")
	}
}

func TestTickerPageRejectsBadTicker(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	rec := doRequest(srv, "GET", "/ticker/ABC123", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for non-alphabetic ticker, got %d", rec.Code)
	}
}

func TestStaticRoute(t *testing.T) {
	srv := newTestServer(t, openTestDB(t))

	rec := doRequest(srv, "GET", "/static/style.css", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "--positive") {
		t.Error("expected CSS content")
	}
}
