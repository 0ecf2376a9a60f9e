package source

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/mkarlsen/tickerpulse/internal/database"
)

// FeedConfig is one RSS/Atom feed to poll.
type FeedConfig struct {
	URL  string
	Name string
}

// FeedSource scans configured RSS/Atom feeds for entries mentioning a
// ticker. Feeds are not ticker-addressable, so every feed is parsed and
// filtered per ticker.
type FeedSource struct {
	Feeds    []FeedConfig
	PerFeed  int
	DaysBack int
	parser   *gofeed.Parser
}

// NewFeedSource creates a feed source.
func NewFeedSource(feeds []FeedConfig, perFeed, daysBack int) *FeedSource {
	if perFeed <= 0 {
		perFeed = 5
	}
	if daysBack <= 0 {
		daysBack = 7
	}
	return &FeedSource{
		Feeds:    feeds,
		PerFeed:  perFeed,
		DaysBack: daysBack,
		parser:   gofeed.NewParser(),
	}
}

func (f *FeedSource) Kind() database.SourceKind { return database.SourceNews }

func (f *FeedSource) Name() string { return "feeds" }

// Fetch parses every configured feed and keeps entries that mention the
// ticker. Feeds that fail are logged and skipped; Fetch only errors when
// every feed failed and nothing was found.
func (f *FeedSource) Fetch(ctx context.Context, ticker string, limit int) ([]Item, error) {
	if len(f.Feeds) == 0 {
		return nil, ErrNotConfigured
	}

	cutoff := time.Now().AddDate(0, 0, -f.DaysBack)
	var items []Item
	var failures int
	var lastErr error

	for _, fc := range f.Feeds {
		feed, err := f.parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			log.Printf("feed: %s failed: %v", fc.URL, err)
			failures++
			lastErr = err
			continue
		}

		matched := 0
		for _, entry := range feed.Items {
			if matched >= f.PerFeed {
				break
			}
			item := parseEntry(entry, ticker, cutoff)
			if item == nil {
				continue
			}
			items = append(items, *item)
			matched++
		}
	}

	if failures == len(f.Feeds) && len(items) == 0 {
		return nil, fmt.Errorf("all feeds failed: %w", lastErr)
	}

	return capItems(items, limit), nil
}

func parseEntry(entry *gofeed.Item, ticker string, cutoff time.Time) *Item {
	link := entry.Link
	if link == "" {
		link = entry.GUID
	}
	if link == "" {
		return nil
	}

	title := strings.TrimSpace(entry.Title)
	if title == "" {
		return nil
	}

	var pubDate string
	if entry.PublishedParsed != nil {
		pubDate = entry.PublishedParsed.Format("2006-01-02")
	} else if entry.UpdatedParsed != nil {
		pubDate = entry.UpdatedParsed.Format("2006-01-02")
	}
	if !withinWindow(pubDate, cutoff) {
		return nil
	}

	var body string
	if entry.Content != "" {
		body = CleanHTML(entry.Content)
	} else if entry.Description != "" {
		body = CleanHTML(entry.Description)
	}

	if !MentionsTicker(title+" "+body, ticker) {
		return nil
	}

	originID := entry.GUID
	if originID == "" {
		originID = link
	}

	return &Item{
		Kind:        database.SourceNews,
		Ticker:      ticker,
		Title:       title,
		Body:        body,
		URL:         link,
		PublishedAt: pubDate,
		OriginID:    originID,
	}
}

func withinWindow(publishedDate string, cutoff time.Time) bool {
	if publishedDate == "" {
		return true // benefit of the doubt
	}
	pub, err := time.Parse("2006-01-02", publishedDate)
	if err != nil {
		return true
	}
	return !pub.Before(cutoff)
}

// MentionsTicker reports whether text refers to the ticker symbol, either
// as a standalone uppercase word or in $TICK cashtag form. Matching is
// case-sensitive for the bare symbol: short tickers like ALL or IT would
// otherwise match ordinary prose.
func MentionsTicker(text, ticker string) bool {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return false
	}
	if containsWord(text, ticker) {
		return true
	}
	return strings.Contains(strings.ToUpper(text), "$"+ticker)
}

func containsWord(text, word string) bool {
	for i := 0; i+len(word) <= len(text); {
		j := strings.Index(text[i:], word)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		i = start + 1
	}
	return false
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// CleanHTML strips markup from feed HTML, returning whitespace-normalized
// text.
func CleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
