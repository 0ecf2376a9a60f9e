package canonical

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkarlsen/tickerpulse/internal/database"
	"github.com/mkarlsen/tickerpulse/internal/llm"
	"github.com/mkarlsen/tickerpulse/internal/source"
)

const forumPrompt = `You are analyzing investor sentiment in a stock discussion forum post.

The post is about the stock %s. Read the post, including the top comment if one is quoted, and judge the overall sentiment the author expresses toward the stock itself.

Post Title: %s
Engagement Score: %d
Content:
%s

Respond with ONLY this JSON:
{
    "summary": "One or two sentences capturing what the post says about the stock",
    "view": "positive" or "neutral" or "negative",
    "tone": "one short label for the emotional register, e.g. euphoric, cautious, sarcastic"
}`

const newsPrompt = `You are analyzing the sentiment of a financial news article toward a stock.

The article concerns the stock %s. Judge the sentiment the coverage conveys about the company's outlook, not general market mood.

Article Title: %s
Content:
%s

Respond with ONLY this JSON:
{
    "summary": "One or two sentences capturing what the article says about the stock",
    "view": "positive" or "neutral" or "negative",
    "tone": "one short label for the register, e.g. analytical, alarmist, promotional"
}`

// Reject reasons reported to the pipeline.
const (
	ReasonSummarizerError    = "summarizer_error"
	ReasonUnparsableResponse = "unparsable_response"
	ReasonInvalidView        = "invalid_sentiment_view"
	ReasonInvalidDate        = "invalid_date"
	ReasonMissingField       = "missing_field"
)

// Rejection reports why an item could not be canonicalized. Rejected
// items are counted and dropped, never retried within a run.
type Rejection struct {
	Reason string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("item rejected (%s): %v", r.Reason, r.Err)
	}
	return fmt.Sprintf("item rejected (%s)", r.Reason)
}

func (r *Rejection) Unwrap() error { return r.Err }

// Canonicalizer turns raw source items into canonical overview records
// by obtaining a sentiment judgment from the summarizer.
type Canonicalizer struct {
	provider  llm.Provider
	maxTokens int
}

// New creates a canonicalizer.
func New(provider llm.Provider, maxTokens int) *Canonicalizer {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &Canonicalizer{provider: provider, maxTokens: maxTokens}
}

// ItemID derives the stable deduplication key for a raw item. The same
// (kind, origin) pair always maps to the same id, so re-runs are
// idempotent.
func ItemID(kind database.SourceKind, originID string) string {
	return string(kind) + ":" + originID
}

// Canonicalize validates one raw item, obtains a sentiment judgment for
// it, and returns the canonical record. Failures are *Rejection errors
// carrying a countable reason.
func (c *Canonicalizer) Canonicalize(ctx context.Context, item source.Item) (*database.OverviewRecord, error) {
	ticker := strings.ToUpper(strings.TrimSpace(item.Ticker))
	if ticker == "" || item.OriginID == "" {
		return nil, &Rejection{Reason: ReasonMissingField}
	}

	// Check the date before spending a summarizer call on the item.
	if !database.ValidDate(item.PublishedAt) {
		return nil, &Rejection{Reason: ReasonInvalidDate, Err: fmt.Errorf("published_at %q", item.PublishedAt)}
	}

	if c.provider == nil {
		return nil, &Rejection{Reason: ReasonSummarizerError, Err: fmt.Errorf("no summarizer available")}
	}

	reply, err := c.provider.Generate(ctx, buildPrompt(item, ticker), c.maxTokens)
	if err != nil {
		return nil, &Rejection{Reason: ReasonSummarizerError, Err: err}
	}

	parsed := llm.ParseJSONResponse(reply)
	if parsed == nil {
		return nil, &Rejection{Reason: ReasonUnparsableResponse}
	}

	rawView := getString(parsed, "view", "")
	view, ok := database.ParseView(rawView)
	if !ok {
		return nil, &Rejection{Reason: ReasonInvalidView, Err: fmt.Errorf("view %q", rawView)}
	}

	summary := strings.TrimSpace(getString(parsed, "summary", ""))
	if summary == "" {
		summary = item.Title
	}
	tone := strings.TrimSpace(getString(parsed, "tone", ""))
	if tone == "" {
		tone = "neutral"
	}

	return &database.OverviewRecord{
		ItemID: ItemID(item.Kind, item.OriginID),
		Ticker: ticker,
		Date:   item.PublishedAt,
		Title:  item.Title,
		Sentiment: database.Sentiment{
			Summary: summary,
			View:    view,
			Tone:    tone,
		},
		SentimentScore: view.Score(),
		SourceLink:     item.URL,
		SourceKind:     item.Kind,
	}, nil
}

func buildPrompt(item source.Item, ticker string) string {
	body := strings.TrimSpace(item.Body)
	if body == "" {
		body = item.Title
	}
	if len(body) > 4000 {
		body = body[:4000] + "..."
	}

	if item.Kind == database.SourceForum {
		return fmt.Sprintf(forumPrompt, ticker, item.Title, item.Engagement, body)
	}
	return fmt.Sprintf(newsPrompt, ticker, item.Title, body)
}

func getString(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}
