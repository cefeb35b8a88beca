package clients

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps a Client with a token-bucket limiter per
// provider, so optimization runs don't exceed a provider's request
// quota. Implemented as a Client decorator rather than a standalone
// utility, so it composes with the rest of the request pipeline.
type RateLimitedClient struct {
	Inner        Client
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// NewRateLimitedClient builds a RateLimitedClient where every provider
// not given an explicit limit via SetProviderLimit shares
// defaultRatePerSecond/defaultBurst.
func NewRateLimitedClient(inner Client, defaultRatePerSecond float64, defaultBurst int) *RateLimitedClient {
	return &RateLimitedClient{
		Inner:        inner,
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(defaultRatePerSecond),
		defaultBurst: defaultBurst,
	}
}

// SetProviderLimit configures a custom rate for a specific provider.
func (c *RateLimitedClient) SetProviderLimit(provider string, ratePerSecond float64, burst int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limiters[provider] = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
}

func (c *RateLimitedClient) limiterFor(provider string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[provider]
	if !ok {
		l = rate.NewLimiter(c.defaultRate, c.defaultBurst)
		c.limiters[provider] = l
	}
	return l
}

// Request implements Client, blocking until the provider's bucket has
// a token or ctx is cancelled.
func (c *RateLimitedClient) Request(ctx context.Context, messages []Message, config Config) (*Response, error) {
	if err := c.limiterFor(config.Provider).Wait(ctx); err != nil {
		return nil, err
	}
	return c.Inner.Request(ctx, messages, config)
}
