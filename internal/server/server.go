package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mkarlsen/tickerpulse/internal/database"
)

const maxTickerLen = 10

// Server exposes the read API and the dashboard over HTTP.
type Server struct {
	db     *database.DB
	router chi.Router
	pages  map[string]*template.Template
}

// New creates a server with all routes and middleware configured.
func New(db *database.DB) (*Server, error) {
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{db: db, pages: pages}
	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/overview/search", s.handleSearch)
		r.Post("/overview/search/range", s.handleSearchRange)
		r.Get("/overview/ticker/{ticker}", s.handleByTicker)
		r.Get("/overview/sentiment/{view}", s.handleBySentiment)
		r.Get("/overview/source/{kind}", s.handleBySource)
		r.Delete("/overview/ticker/{ticker}", s.handleDeleteTicker)
		r.Delete("/overview/range", s.handleDeleteRange)
		r.Get("/sentiment/{ticker}", s.handleSummary)
		r.Get("/status", s.handleStatus)
	})

	s.dashboardRoutes(r)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

type searchRequest struct {
	Ticker string `json:"ticker"`
	Date   string `json:"date"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ticker, err := normalizeTicker(req.Ticker)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !database.ValidDate(req.Date) {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	records, err := s.db.GetByTickerAndDate(ticker, req.Date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"ticker":  ticker,
		"date":    req.Date,
		"records": recordsOrEmpty(records),
		"count":   len(records),
	})
}

type rangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (s *Server) handleSearchRange(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !database.ValidDate(req.StartDate) || !database.ValidDate(req.EndDate) {
		writeError(w, http.StatusBadRequest, "start_date and end_date must be YYYY-MM-DD")
		return
	}

	records, err := s.db.GetByDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"start_date": req.StartDate,
		"end_date":   req.EndDate,
		"records":    recordsOrEmpty(records),
		"count":      len(records),
	})
}

func (s *Server) handleByTicker(w http.ResponseWriter, r *http.Request) {
	ticker, err := normalizeTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.db.GetByTicker(ticker, skip, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"ticker":  ticker,
		"records": recordsOrEmpty(records),
		"count":   len(records),
	})
}

func (s *Server) handleBySentiment(w http.ResponseWriter, r *http.Request) {
	view, ok := database.ParseView(chi.URLParam(r, "view"))
	if !ok {
		writeError(w, http.StatusBadRequest, "sentiment must be positive, neutral, or negative")
		return
	}

	records, err := s.db.GetBySentiment(view)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"sentiment": view,
		"records":   recordsOrEmpty(records),
		"count":     len(records),
	})
}

func (s *Server) handleBySource(w http.ResponseWriter, r *http.Request) {
	kind, ok := database.ParseSourceKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "source must be forum or news")
		return
	}

	records, err := s.db.GetBySourceKind(kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"source":  kind,
		"records": recordsOrEmpty(records),
		"count":   len(records),
	})
}

func (s *Server) handleDeleteTicker(w http.ResponseWriter, r *http.Request) {
	ticker, err := normalizeTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := s.db.DeleteByTicker(ticker)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store delete failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"ticker":  ticker,
		"deleted": deleted,
	})
}

func (s *Server) handleDeleteRange(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start_date")
	end := r.URL.Query().Get("end_date")
	if !database.ValidDate(start) || !database.ValidDate(end) {
		writeError(w, http.StatusBadRequest, "start_date and end_date must be YYYY-MM-DD")
		return
	}

	deleted, err := s.db.DeleteByDateRange(start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store delete failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"deleted": deleted,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ticker, err := normalizeTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.db.GetSummary(ticker)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store query failed")
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no sentiment summary for %s", ticker))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"ticker":  ticker,
		"summary": summary,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"stats":  stats,
	})
}

// normalizeTicker trims and uppercases a ticker symbol, enforcing the
// alphabetic, at-most-10-character form used everywhere in the store.
func normalizeTicker(raw string) (string, error) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	if ticker == "" {
		return "", errors.New("ticker is required")
	}
	if len(ticker) > maxTickerLen {
		return "", fmt.Errorf("ticker must be at most %d characters", maxTickerLen)
	}
	for _, r := range ticker {
		if r < 'A' || r > 'Z' {
			return "", errors.New("ticker must be alphabetic")
		}
	}
	return ticker, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

// recordsOrEmpty keeps the records field a JSON array even with no rows.
func recordsOrEmpty(records []database.OverviewRecord) []database.OverviewRecord {
	if records == nil {
		return []database.OverviewRecord{}
	}
	return records
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"status": "error", "error": msg})
}

// Serve starts the HTTP server and shuts down cleanly on SIGINT/SIGTERM.
func Serve(db *database.DB, port int) error {
	srv, err := New(db)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", port),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server listening on http://%s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
