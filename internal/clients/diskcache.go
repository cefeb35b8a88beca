package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
)

// DiskCache is a persistent, process-restart-surviving response cache
// for production use, as an alternative to the in-memory ResponseCache
// used for deterministic test replay.
type DiskCache struct {
	db  *badger.DB
	mu  sync.RWMutex
	ttl time.Duration
}

// NewDiskCache opens (creating if necessary) a badger database at
// opts.Path.
func NewDiskCache(opts DiskCacheOptions) (*DiskCache, error) {
	if opts.Path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		opts.Path = filepath.Join(homeDir, ".simba", "cache")
	}
	if err := os.MkdirAll(opts.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	badgerOpts := badger.DefaultOptions(opts.Path)
	badgerOpts.Logger = nil

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &DiskCache{db: db, ttl: ttl}, nil
}

// Close releases the underlying badger database.
func (c *DiskCache) Close() error {
	return c.db.Close()
}

// Get looks up a previously cached response.
func (c *DiskCache) Get(ctx context.Context, messages []Message, config Config) (*Response, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key := []byte(cacheKey(messages, config))
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("disk cache get: %w", err)
	}

	var entry diskEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("disk cache decode: %w", err)
	}
	return entry.toResponse(), true, nil
}

// Put stores a response, expiring after the cache's configured TTL.
func (c *DiskCache) Put(ctx context.Context, messages []Message, config Config, resp *Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := json.Marshal(toDiskEntry(resp))
	if err != nil {
		return fmt.Errorf("disk cache encode: %w", err)
	}

	key := []byte(cacheKey(messages, config))
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, raw).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
}

// DiskCachingClient wraps a Client with a DiskCache, serving cache hits
// without calling Inner.
type DiskCachingClient struct {
	Inner Client
	Cache *DiskCache
}

// NewDiskCachingClient builds a DiskCachingClient backed by cache.
func NewDiskCachingClient(inner Client, cache *DiskCache) *DiskCachingClient {
	return &DiskCachingClient{Inner: inner, Cache: cache}
}

// Request implements Client.
func (c *DiskCachingClient) Request(ctx context.Context, messages []Message, config Config) (*Response, error) {
	if resp, ok, err := c.Cache.Get(ctx, messages, config); err == nil && ok {
		return resp, nil
	}

	resp, err := c.Inner.Request(ctx, messages, config)
	if err != nil {
		return nil, err
	}
	if putErr := c.Cache.Put(ctx, messages, config, resp); putErr != nil {
		return resp, nil
	}
	return resp, nil
}
