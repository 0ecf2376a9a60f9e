package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkarlsen/tickerpulse/internal/database"
)

// Item is a single raw post or article pulled from a source, before
// sentiment analysis.
type Item struct {
	Kind        database.SourceKind
	Ticker      string
	Title       string
	Body        string
	URL         string
	PublishedAt string // YYYY-MM-DD or empty
	Engagement  int
	OriginID    string
}

// Source fetches raw items mentioning a ticker from one upstream system.
type Source interface {
	// Kind reports whether items from this source are forum posts or news.
	Kind() database.SourceKind
	// Name identifies the source in logs and counters.
	Name() string
	// Fetch returns at most limit items mentioning ticker.
	Fetch(ctx context.Context, ticker string, limit int) ([]Item, error)
}

// ErrNotConfigured is returned when a source is missing credentials or
// other required configuration. Callers skip the source instead of
// counting a failure.
var ErrNotConfigured = errors.New("source not configured")

// ErrRateLimited is returned when the upstream rejects a request for
// quota reasons.
var ErrRateLimited = errors.New("source rate limited")

// HTTPError is an unexpected upstream HTTP status.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

func capItems(items []Item, limit int) []Item {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
