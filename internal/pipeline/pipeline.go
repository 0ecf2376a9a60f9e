package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkarlsen/tickerpulse/internal/aggregate"
	"github.com/mkarlsen/tickerpulse/internal/canonical"
	"github.com/mkarlsen/tickerpulse/internal/config"
	"github.com/mkarlsen/tickerpulse/internal/database"
	"github.com/mkarlsen/tickerpulse/internal/llm"
	"github.com/mkarlsen/tickerpulse/internal/source"
)

// TickerResult counts per-item outcomes for one ticker in a run.
type TickerResult struct {
	Created      int
	Skipped      int
	Failed       int
	SourceErrors int
}

// Result holds the outcome of a full ingestion run.
type Result struct {
	Tickers map[string]*TickerResult
}

// Totals sums the per-ticker counters.
func (r *Result) Totals() TickerResult {
	var total TickerResult
	for _, tr := range r.Tickers {
		total.Created += tr.Created
		total.Skipped += tr.Skipped
		total.Failed += tr.Failed
		total.SourceErrors += tr.SourceErrors
	}
	return total
}

// Runner drives the per-ticker, per-source, per-item ingestion fan-out
// and refreshes each ticker's sentiment summary afterwards.
type Runner struct {
	cfg      *config.Config
	db       *database.DB
	sources  []source.Source
	enricher *source.Enricher
	canon    *canonical.Canonicalizer
	agg      *aggregate.Aggregator
}

// New creates a runner with explicit dependencies. Tests substitute fake
// sources and providers here.
func New(cfg *config.Config, db *database.DB, sources []source.Source, provider llm.Provider) *Runner {
	return &Runner{
		cfg:     cfg,
		db:      db,
		sources: sources,
		canon:   canonical.New(provider, cfg.Summarizer.MaxTokens),
		agg:     aggregate.New(db, provider),
	}
}

// FromConfig wires a runner from config: summarizer provider with rate
// limiting, enabled source adapters, and optional content enrichment.
func FromConfig(cfg *config.Config, db *database.DB) *Runner {
	summ := cfg.Summarizer
	provider := llm.CreateProvider(summ.Provider, summ.Model, summ.APIKeyEnv, summ.OllamaURL, summ.OllamaModel)
	provider = llm.NewRateLimited(provider, summ.RequestsPerMinute)

	var sources []source.Source
	if cfg.Sources.Forum.Enabled {
		sources = append(sources, source.NewRedditSource(cfg.Sources.Forum.Subreddits, cfg.Sources.Forum.PostsPerSubreddit))
	}
	news := cfg.Sources.News
	if news.NewsAPI.Enabled {
		sources = append(sources, source.NewNewsAPISource(news.NewsAPI.APIKeyEnv, news.NewsAPI.PageSize, news.DaysBack))
	}
	if len(news.Feeds) > 0 {
		feeds := make([]source.FeedConfig, 0, len(news.Feeds))
		for _, f := range news.Feeds {
			feeds = append(feeds, source.FeedConfig{URL: f.URL, Name: f.Name})
		}
		sources = append(sources, source.NewFeedSource(feeds, 0, news.DaysBack))
	}

	r := New(cfg, db, sources, provider)
	if news.EnrichContent {
		r.enricher = source.NewEnricher(news.MinBodyChars, 15*time.Second)
	}
	return r
}

// Sources lists the wired source adapters.
func (r *Runner) Sources() []source.Source {
	return r.sources
}

// Run ingests every ticker in the list. Source and item failures are
// counted per ticker, never fatal; the returned error is only ever
// context cancellation.
func (r *Runner) Run(ctx context.Context, tickers []string) (*Result, error) {
	res := &Result{Tickers: make(map[string]*TickerResult, len(tickers))}
	var order []string
	for _, t := range tickers {
		ticker := strings.ToUpper(strings.TrimSpace(t))
		if ticker == "" {
			continue
		}
		if _, seen := res.Tickers[ticker]; seen {
			continue
		}
		res.Tickers[ticker] = &TickerResult{}
		order = append(order, ticker)
	}

	limit := r.cfg.Pipeline.MaxConcurrentTickers
	if limit < 1 {
		limit = 1
	}

	// Every goroutine writes only its own pre-allocated TickerResult, so
	// the map itself is never mutated concurrently.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, ticker := range order {
		ticker := ticker
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.processTicker(gctx, ticker, res.Tickers[ticker])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Runner) processTicker(ctx context.Context, ticker string, tr *TickerResult) {
	for _, src := range r.sources {
		items, err := src.Fetch(ctx, ticker, r.cfg.Pipeline.ItemsPerSource)
		if err != nil {
			if errors.Is(err, source.ErrNotConfigured) {
				log.Printf("Source %s is not configured, skipping", src.Name())
				continue
			}
			log.Printf("Fetching %s from %s failed: %v", ticker, src.Name(), err)
			tr.SourceErrors++
			continue
		}
		log.Printf("Fetched %d items from %s for %s", len(items), src.Name(), ticker)

		if r.enricher != nil && src.Kind() == database.SourceNews {
			r.enricher.Enrich(ctx, items)
		}

		for _, item := range items {
			r.processItem(ctx, item, tr)
		}
	}

	// Totality of the aggregator means a refresh only fails on a store
	// write error; the run carries on either way.
	if _, err := r.agg.Recompute(ctx, ticker); err != nil {
		log.Printf("Summary refresh for %s failed: %v", ticker, err)
	}
	log.Printf("Finished %s: created=%d skipped=%d failed=%d", ticker, tr.Created, tr.Skipped, tr.Failed)
}

func (r *Runner) processItem(ctx context.Context, item source.Item, tr *TickerResult) {
	record, err := r.canon.Canonicalize(ctx, item)
	if err != nil {
		log.Printf("Rejected %s item %s: %v", item.Kind, item.OriginID, err)
		tr.Failed++
		return
	}

	created, err := r.db.InsertOverview(record)
	if err != nil {
		log.Printf("Storing %s failed: %v", record.ItemID, err)
		tr.Failed++
		return
	}
	if created {
		tr.Created++
	} else {
		tr.Skipped++
	}
}

// DryRun reports what a run would touch without fetching or writing.
func (r *Runner) DryRun(tickers []string) []string {
	lines := []string{
		fmt.Sprintf("[dry-run] %d sources wired, up to %d items each per ticker", len(r.sources), r.cfg.Pipeline.ItemsPerSource),
	}
	for _, t := range tickers {
		ticker := strings.ToUpper(strings.TrimSpace(t))
		if ticker == "" {
			continue
		}
		count, err := r.db.CountByTicker(ticker)
		if err != nil {
			lines = append(lines, fmt.Sprintf("[dry-run] %s: store unavailable: %v", ticker, err))
			continue
		}
		state := "no summary yet"
		if summary, err := r.db.GetSummary(ticker); err == nil && summary != nil {
			state = fmt.Sprintf("summary overall %s", summary.OverallSentiment)
		}
		lines = append(lines, fmt.Sprintf("[dry-run] %s: %d records in store, %s", ticker, count, state))
	}
	return lines
}
