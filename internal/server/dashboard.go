package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"github.com/mkarlsen/tickerpulse/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const recentRecordsShown = 20

// parseTemplates builds one template set per page. Each page clones the
// base so it gets its own {{define "content"}} and {{define "title"}}.
func parseTemplates() (map[string]*template.Template, error) {
	funcMap := template.FuncMap{
		"markdown":   renderMarkdown,
		"formatDate": database.FormatDateDisplay,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{"index.html", "ticker.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}
	return pages, nil
}

func (s *Server) dashboardRoutes(r chi.Router) {
	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.Get("/", s.handleIndex)
	r.Get("/ticker/{ticker}", s.handleTickerPage)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.db.GetAllSummaries()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	tickers, _ := s.db.GetAllTickers()

	s.render(w, "index.html", map[string]any{
		"Summaries": summaries,
		"Tickers":   tickers,
	})
}

func (s *Server) handleTickerPage(w http.ResponseWriter, r *http.Request) {
	ticker, err := normalizeTicker(chi.URLParam(r, "ticker"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	summary, _ := s.db.GetSummary(ticker)
	records, _ := s.db.GetByTicker(ticker, 0, recentRecordsShown)

	s.render(w, "ticker.html", map[string]any{
		"Ticker":  ticker,
		"Summary": summary,
		"Records": records,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}
