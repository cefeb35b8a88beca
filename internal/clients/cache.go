package clients

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheKey derives a deterministic key from a request's messages and
// config, so that identical requests replay identically under a fixed
// seed.
func cacheKey(messages []Message, config Config) string {
	payload := struct {
		Messages []Message
		Config   Config
	}{messages, config}

	data, err := json.Marshal(payload)
	if err != nil {
		// Marshaling a plain struct of strings/numbers cannot fail; if it
		// somehow does, fall back to a key that never hits the cache.
		return fmt.Sprintf("unhashable:%p", &payload)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// ResponseCache is a deterministic in-memory response table keyed by
// (messages, config), for test-mode replay, backed by an LRU cache.
type ResponseCache struct {
	cache *lru.Cache[string, *Response]
}

// NewResponseCache builds a ResponseCache holding up to size entries.
func NewResponseCache(size int) (*ResponseCache, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, *Response](size)
	if err != nil {
		return nil, err
	}
	return &ResponseCache{cache: c}, nil
}

// Get looks up a previously recorded response for the given request.
func (c *ResponseCache) Get(messages []Message, config Config) (*Response, bool) {
	return c.cache.Get(cacheKey(messages, config))
}

// Put records a response for the given request.
func (c *ResponseCache) Put(messages []Message, config Config, resp *Response) {
	c.cache.Add(cacheKey(messages, config), resp)
}

// CachingClient wraps a Client with a ResponseCache, serving cache hits
// without calling Inner.
type CachingClient struct {
	Inner Client
	Cache *ResponseCache
}

// NewCachingClient builds a CachingClient backed by cache.
func NewCachingClient(inner Client, cache *ResponseCache) *CachingClient {
	return &CachingClient{Inner: inner, Cache: cache}
}

// Request implements Client.
func (c *CachingClient) Request(ctx context.Context, messages []Message, config Config) (*Response, error) {
	if resp, ok := c.Cache.Get(messages, config); ok {
		return resp, nil
	}

	resp, err := c.Inner.Request(ctx, messages, config)
	if err != nil {
		return nil, err
	}
	c.Cache.Put(messages, config, resp)
	return resp, nil
}

// DiskCacheOptions configures a badger-backed persistent cache.
type DiskCacheOptions struct {
	// Path is the directory where cache data is stored.
	Path string
	// TTL is the default time-to-live for cache entries.
	TTL time.Duration
}

// diskEntry is the JSON payload stored per cache key in the badger DB.
type diskEntry struct {
	CompletionText string `json:"completion_text"`
	PromptTokens   int    `json:"prompt_tokens"`
	CompletionTokn int    `json:"completion_tokens"`
	TotalTokens    int    `json:"total_tokens"`
}

func toDiskEntry(r *Response) diskEntry {
	return diskEntry{
		CompletionText: r.CompletionText,
		PromptTokens:   r.Usage.PromptTokens,
		CompletionTokn: r.Usage.CompletionTokens,
		TotalTokens:    r.Usage.TotalTokens,
	}
}

func (e diskEntry) toResponse() *Response {
	return &Response{
		CompletionText: e.CompletionText,
		Usage: Usage{
			PromptTokens:     e.PromptTokens,
			CompletionTokens: e.CompletionTokn,
			TotalTokens:      e.TotalTokens,
		},
	}
}
