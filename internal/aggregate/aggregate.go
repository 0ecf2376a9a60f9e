package aggregate

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/mkarlsen/tickerpulse/internal/database"
	"github.com/mkarlsen/tickerpulse/internal/llm"
)

const maxTopHeadlines = 5

const errorNarrative = "Unable to analyze due to an error."

const geoPrompt = `You are writing the geopolitical context line for a stock sentiment dashboard.

These are recent posts and articles about %s. Geopolitical and macro terms that appeared, most frequent first: %s.

Items:
%s

Write 2-3 sentences on how geopolitical factors (conflicts, trade policy, sanctions, country risk) feature in this coverage of %s. If they barely feature, say so plainly.

Respond with ONLY this JSON:
{
    "narrative": "Your 2-3 sentences here"
}`

const macroPrompt = `You are writing the macroeconomic context line for a stock sentiment dashboard.

These are recent posts and articles about %s. Macro-relevant terms that appeared, most frequent first: %s.

Items:
%s

Write 2-3 sentences on how macroeconomic factors (rates, inflation, growth, policy) feature in this coverage of %s. If they barely feature, say so plainly.

Respond with ONLY this JSON:
{
    "narrative": "Your 2-3 sentences here"
}`

// Aggregator recomputes per-ticker sentiment summaries from stored
// records.
type Aggregator struct {
	db       *database.DB
	provider llm.Provider
}

// New creates an aggregator.
func New(db *database.DB, provider llm.Provider) *Aggregator {
	return &Aggregator{db: db, provider: provider}
}

// Recompute rebuilds the summary for one ticker from its stored records
// and upserts it, replacing any previous summary. Narrative failures
// degrade to fallback text; only store write failures are errors.
func (a *Aggregator) Recompute(ctx context.Context, ticker string) (*database.SentimentSummary, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	records, err := a.db.GetByTicker(ticker, 0, 0)
	if err != nil {
		// Downstream consumers always expect a current summary row, so a
		// read failure still writes one.
		log.Printf("aggregate: reading records for %s failed: %v", ticker, err)
		summary := errorSummary(ticker)
		if werr := a.db.UpsertSummary(summary); werr != nil {
			return nil, fmt.Errorf("storing summary for %s: %w", ticker, werr)
		}
		return summary, nil
	}

	summary := Summarize(ticker, records)
	a.addNarratives(ctx, summary, records)

	if err := a.db.UpsertSummary(summary); err != nil {
		return nil, fmt.Errorf("storing summary for %s: %w", ticker, err)
	}

	log.Printf("Aggregated %s: %d records, overall %s", ticker, summary.Total, summary.OverallSentiment)
	return summary, nil
}

// RecomputeAll rebuilds summaries for every ticker passed, continuing
// past per-ticker store errors. It returns the number of summaries
// written.
func (a *Aggregator) RecomputeAll(ctx context.Context, tickers []string) int {
	written := 0
	for _, ticker := range tickers {
		if _, err := a.Recompute(ctx, ticker); err != nil {
			log.Printf("aggregate: %s failed: %v", ticker, err)
			continue
		}
		written++
	}
	return written
}

// Summarize computes counts, overall sentiment, average confidence, and
// top headlines for a ticker. It is total: zero records produce a valid
// neutral summary.
func Summarize(ticker string, records []database.OverviewRecord) *database.SentimentSummary {
	s := &database.SentimentSummary{
		Ticker:           strings.ToUpper(strings.TrimSpace(ticker)),
		Total:            len(records),
		OverallSentiment: database.ViewNeutral,
	}

	var confidenceSum float64
	for _, rec := range records {
		switch rec.Sentiment.View {
		case database.ViewPositive:
			s.PositiveCount++
		case database.ViewNegative:
			s.NegativeCount++
		default:
			s.NeutralCount++
		}
		confidenceSum += math.Abs(rec.SentimentScore)

		if len(s.TopHeadlines) < maxTopHeadlines {
			s.TopHeadlines = append(s.TopHeadlines, rec.Title)
		}
	}

	// Majority vote; ties (including zero records) stay neutral.
	if s.PositiveCount > s.NegativeCount {
		s.OverallSentiment = database.ViewPositive
	} else if s.NegativeCount > s.PositiveCount {
		s.OverallSentiment = database.ViewNegative
	}

	if len(records) > 0 {
		s.AverageConfidence = confidenceSum / float64(len(records))
	}

	return s
}

func (a *Aggregator) addNarratives(ctx context.Context, summary *database.SentimentSummary, records []database.OverviewRecord) {
	texts := make([]string, 0, len(records))
	for _, rec := range records {
		texts = append(texts, rec.Title+" "+rec.Sentiment.Summary)
	}
	keywords := DetectKeywords(texts)

	if len(keywords) == 0 {
		summary.GeopoliticalSummary = fmt.Sprintf("No notable geopolitical signals in recent %s coverage.", summary.Ticker)
		summary.MacroSummary = fmt.Sprintf("No notable macro signals in recent %s coverage.", summary.Ticker)
		return
	}

	summary.GeopoliticalSummary = a.narrative(ctx, geoPrompt, summary.Ticker, keywords, records)
	summary.MacroSummary = a.narrative(ctx, macroPrompt, summary.Ticker, keywords, records)
}

func (a *Aggregator) narrative(ctx context.Context, promptTmpl, ticker string, keywords []string, records []database.OverviewRecord) string {
	if a.provider == nil {
		return fallbackNarrative(ticker, keywords)
	}

	prompt := fmt.Sprintf(promptTmpl, ticker, strings.Join(keywords, ", "), formatRecords(records), ticker)
	responseText, err := a.provider.Generate(ctx, prompt, 512)
	if err != nil || strings.TrimSpace(responseText) == "" {
		return fallbackNarrative(ticker, keywords)
	}

	if parsed := llm.ParseJSONResponse(responseText); parsed != nil {
		if n := strings.TrimSpace(getStr(parsed, "narrative", "")); n != "" {
			return n
		}
	}
	return strings.TrimSpace(responseText)
}

func fallbackNarrative(ticker string, keywords []string) string {
	shown := keywords
	if len(shown) > 5 {
		shown = shown[:5]
	}
	return fmt.Sprintf("Recent %s coverage touches on %s.", ticker, strings.Join(shown, ", "))
}

func errorSummary(ticker string) *database.SentimentSummary {
	return &database.SentimentSummary{
		Ticker:              ticker,
		OverallSentiment:    database.ViewNeutral,
		GeopoliticalSummary: errorNarrative,
		MacroSummary:        errorNarrative,
	}
}

func formatRecords(records []database.OverviewRecord) string {
	shown := records
	if len(shown) > 15 {
		shown = shown[:15]
	}

	var parts []string
	for i, rec := range shown {
		parts = append(parts, fmt.Sprintf("[%d] %s (%s, %s)\n  %s",
			i+1, rec.Title, rec.Sentiment.View, rec.Date, rec.Sentiment.Summary))
	}
	return strings.Join(parts, "\n\n")
}

func getStr(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}
