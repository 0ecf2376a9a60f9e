package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited wraps a Provider with a client-side request rate limit.
// Generate blocks until the limiter grants a slot or the context is done.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited wraps p, allowing at most requestsPerMinute Generate
// calls per minute. A nil provider or non-positive limit returns p unwrapped.
func NewRateLimited(p Provider, requestsPerMinute int) Provider {
	if p == nil || requestsPerMinute <= 0 {
		return p
	}
	return &RateLimited{
		inner:   p,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
	}
}

// Generate waits for limiter clearance, then delegates to the wrapped provider.
func (r *RateLimited) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Generate(ctx, prompt, maxTokens)
}

// IsConfigured reports whether the wrapped provider is configured.
func (r *RateLimited) IsConfigured() bool {
	return r.inner.IsConfigured()
}
