package source

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/mkarlsen/tickerpulse/internal/database"
)

// Enricher fills in thin news bodies by fetching the article page and
// extracting readable text.
type Enricher struct {
	MinBodyChars int
	client       *http.Client
}

// NewEnricher creates an enricher. Items whose body is already at least
// minBodyChars long are left alone.
func NewEnricher(minBodyChars int, timeout time.Duration) *Enricher {
	if minBodyChars <= 0 {
		minBodyChars = 200
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Enricher{
		MinBodyChars: minBodyChars,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Enrich replaces thin news bodies in place and returns how many items it
// enriched. Once a domain answers with an HTTP error, remaining items from
// it are skipped.
func (e *Enricher) Enrich(ctx context.Context, items []Item) int {
	failedDomains := make(map[string]struct{})
	enriched := 0

	for i := range items {
		item := &items[i]
		if item.Kind != database.SourceNews || item.URL == "" {
			continue
		}
		if len(item.Body) >= e.MinBodyChars {
			continue
		}

		domain := hostOf(item.URL)
		if _, failed := failedDomains[domain]; failed {
			continue
		}

		text, err := e.fetchText(ctx, item.URL)
		if err != nil {
			if domain != "" {
				failedDomains[domain] = struct{}{}
				log.Printf("enrich: %s failed, skipping remaining from %s", item.URL, domain)
			}
			continue
		}
		if text == "" {
			continue
		}

		item.Body = text
		enriched++
	}

	if enriched > 0 {
		log.Printf("Enriched %d thin items with page content", enriched)
	}
	return enriched
}

func (e *Enricher) fetchText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &HTTPError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > 100 {
		return text, nil
	}
	return "", nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
