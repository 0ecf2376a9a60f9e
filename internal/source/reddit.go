package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mkarlsen/tickerpulse/internal/database"
)

const redditBaseURL = "https://www.reddit.com"

// userAgent identifies us to upstream servers; reddit's public JSON
// endpoints throttle generic client strings aggressively.
const userAgent = "tickerpulse/1.0 (stock sentiment monitor)"

// RedditSource pulls recent posts mentioning a ticker from a set of
// subreddits via the public JSON API.
type RedditSource struct {
	Subreddits  []string
	PostsPerSub int
	BaseURL     string
	client      *http.Client
}

// NewRedditSource creates a reddit source.
func NewRedditSource(subreddits []string, postsPerSub int) *RedditSource {
	if postsPerSub <= 0 {
		postsPerSub = 3
	}
	return &RedditSource{
		Subreddits:  subreddits,
		PostsPerSub: postsPerSub,
		BaseURL:     redditBaseURL,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *RedditSource) Kind() database.SourceKind { return database.SourceForum }

func (r *RedditSource) Name() string { return "reddit" }

// Fetch searches each configured subreddit for posts quoting the ticker.
// Subreddits that fail are logged and skipped; Fetch only errors when
// every subreddit failed and nothing was found.
func (r *RedditSource) Fetch(ctx context.Context, ticker string, limit int) ([]Item, error) {
	if len(r.Subreddits) == 0 {
		return nil, ErrNotConfigured
	}

	var items []Item
	var failures int
	var lastErr error

	for _, sub := range r.Subreddits {
		posts, err := r.searchSubreddit(ctx, sub, ticker)
		if err != nil {
			log.Printf("reddit: r/%s search failed: %v", sub, err)
			failures++
			lastErr = err
			continue
		}
		items = append(items, posts...)
	}

	if failures == len(r.Subreddits) && len(items) == 0 {
		return nil, fmt.Errorf("all subreddits failed: %w", lastErr)
	}

	return capItems(items, limit), nil
}

type redditPost struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Selftext   string  `json:"selftext"`
	Permalink  string  `json:"permalink"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
}

func (r *RedditSource) searchSubreddit(ctx context.Context, subreddit, ticker string) ([]Item, error) {
	params := url.Values{
		"q":           {fmt.Sprintf("%q", ticker)},
		"restrict_sr": {"1"},
		"sort":        {"relevance"},
		"t":           {"week"},
		"limit":       {fmt.Sprintf("%d", r.PostsPerSub)},
	}

	endpoint := fmt.Sprintf("%s/r/%s/search.json?%s", r.BaseURL, subreddit, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	var listing struct {
		Data struct {
			Children []struct {
				Data redditPost `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}

	var items []Item
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied || post.ID == "" || post.Title == "" {
			continue
		}

		body := strings.TrimSpace(post.Selftext)
		if comment := r.topComment(ctx, post.ID); comment != "" {
			if body != "" {
				body += "\n\n"
			}
			body += "Top comment: " + comment
		}

		items = append(items, Item{
			Kind:        database.SourceForum,
			Ticker:      ticker,
			Title:       strings.TrimSpace(post.Title),
			Body:        body,
			URL:         r.BaseURL + post.Permalink,
			PublishedAt: formatUnixDate(post.CreatedUTC),
			Engagement:  post.Score,
			OriginID:    post.ID,
		})
	}

	return items, nil
}

// topComment returns the highest-ranked non-stickied top-level comment
// on a post, or "" if none can be fetched. Comment failures never fail
// the post itself.
func (r *RedditSource) topComment(ctx context.Context, postID string) string {
	endpoint := fmt.Sprintf("%s/comments/%s.json?sort=top&limit=5&depth=1", r.BaseURL, postID)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	// The endpoint returns [postListing, commentListing].
	var listings []struct {
		Data struct {
			Children []struct {
				Kind string `json:"kind"`
				Data struct {
					Body     string `json:"body"`
					Stickied bool   `json:"stickied"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil || len(listings) < 2 {
		return ""
	}

	for _, child := range listings[1].Data.Children {
		if child.Kind != "t1" || child.Data.Stickied {
			continue
		}
		if body := strings.TrimSpace(child.Data.Body); body != "" {
			return body
		}
	}
	return ""
}

func formatUnixDate(sec float64) string {
	if sec <= 0 {
		return ""
	}
	return time.Unix(int64(sec), 0).UTC().Format("2006-01-02")
}
