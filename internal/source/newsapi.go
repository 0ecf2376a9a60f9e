package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mkarlsen/tickerpulse/internal/database"
)

const newsAPIBaseURL = "https://newsapi.org"

// NewsAPISource fetches recent news articles mentioning a ticker from
// the NewsAPI /v2/everything endpoint.
type NewsAPISource struct {
	PageSize int
	DaysBack int
	BaseURL  string
	apiKey   string
	client   *http.Client
}

// NewNewsAPISource creates a NewsAPI source. The API key is read from
// the environment variable named by apiKeyEnv.
func NewNewsAPISource(apiKeyEnv string, pageSize, daysBack int) *NewsAPISource {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	if daysBack <= 0 {
		daysBack = 7
	}
	return &NewsAPISource{
		PageSize: pageSize,
		DaysBack: daysBack,
		BaseURL:  newsAPIBaseURL,
		apiKey:   os.Getenv(apiKeyEnv),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (n *NewsAPISource) Kind() database.SourceKind { return database.SourceNews }

func (n *NewsAPISource) Name() string { return "newsapi" }

// Fetch returns the most recent articles mentioning the ticker.
func (n *NewsAPISource) Fetch(ctx context.Context, ticker string, limit int) ([]Item, error) {
	if n.apiKey == "" {
		return nil, ErrNotConfigured
	}

	pageSize := n.PageSize
	if limit > 0 && limit < pageSize {
		pageSize = limit
	}

	params := url.Values{
		"q":        {ticker},
		"from":     {time.Now().AddDate(0, 0, -n.DaysBack).Format("2006-01-02")},
		"language": {"en"},
		"sortBy":   {"publishedAt"},
		"pageSize": {fmt.Sprintf("%d", pageSize)},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", n.BaseURL+"/v2/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("newsapi key rejected: %w", ErrNotConfigured)
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	var result struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Content     string `json:"content"`
			Description string `json:"description"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("newsapi decode: %w", err)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("newsapi status %q: %s", result.Status, result.Message)
	}

	var items []Item
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" {
			continue
		}
		if a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		var pubDate string
		if a.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
				pubDate = t.Format("2006-01-02")
			}
		}

		body := a.Content
		if body == "" {
			body = a.Description
		}

		items = append(items, Item{
			Kind:        database.SourceNews,
			Ticker:      ticker,
			Title:       strings.TrimSpace(a.Title),
			Body:        strings.TrimSpace(body),
			URL:         a.URL,
			PublishedAt: pubDate,
			OriginID:    a.URL,
		})
	}

	return capItems(items, limit), nil
}
