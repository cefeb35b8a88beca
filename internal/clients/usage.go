package clients

import (
	"context"
	"sync"
)

// UsageTracker aggregates token usage per model across a run; the
// optimizer itself does not read it. It tracks
// token counts only; there is no pricing table to attach dollar costs
// to.
type UsageTracker struct {
	mu     sync.Mutex
	tokens map[string]int
	calls  map[string]int
}

// NewUsageTracker returns an empty UsageTracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{tokens: make(map[string]int), calls: make(map[string]int)}
}

// Record adds one call's usage under model.
func (t *UsageTracker) Record(model string, usage Usage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[model] += usage.TotalTokens
	t.calls[model]++
}

// TotalTokens returns total tokens recorded across all models.
func (t *UsageTracker) TotalTokens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, n := range t.tokens {
		total += n
	}
	return total
}

// ModelTokens returns the tokens recorded for a specific model.
func (t *UsageTracker) ModelTokens(model string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokens[model]
}

// ModelCalls returns the call count for a specific model.
func (t *UsageTracker) ModelCalls(model string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[model]
}

// TrackingClient wraps a Client, recording usage into a UsageTracker
// for every successful call.
type TrackingClient struct {
	Inner   Client
	Tracker *UsageTracker
}

// NewTrackingClient builds a TrackingClient backed by tracker.
func NewTrackingClient(inner Client, tracker *UsageTracker) *TrackingClient {
	return &TrackingClient{Inner: inner, Tracker: tracker}
}

// Request implements Client.
func (c *TrackingClient) Request(ctx context.Context, messages []Message, config Config) (*Response, error) {
	resp, err := c.Inner.Request(ctx, messages, config)
	if err != nil {
		return nil, err
	}
	c.Tracker.Record(config.Model, resp.Usage)
	return resp, nil
}
