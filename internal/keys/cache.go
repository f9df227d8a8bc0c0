package keys

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/udisondev/pagelock/internal/model"
)

// Store is a persistent tier behind the in-memory cache.
// Load reports found=false for a missing entry without an error.
type Store interface {
	Load(ctx context.Context, key model.CacheKey) (rec model.KeyRecord, found bool, err error)
	Save(ctx context.Context, rec model.KeyRecord) error
	Delete(ctx context.Context, key model.CacheKey) error
}

type cacheEntry[V any] struct {
	value     V
	fetchedAt time.Time
}

// Cache keeps resolved key material per (site, scope) with compute-if-absent semantics:
// concurrent misses for one key share a single fetch, different keys never wait on each other.
// A non-positive ttl keeps entries for the lifetime of the process.
type Cache[V any] struct {
	ttl     time.Duration
	store   Store
	now     func() time.Time
	entries map[model.CacheKey]cacheEntry[V]
	mu      sync.RWMutex
	group   singleflight.Group
}

// NewCache creates a cache. store may be nil.
func NewCache[V any](ttl time.Duration, store Store) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		store:   store,
		now:     time.Now,
		entries: make(map[model.CacheKey]cacheEntry[V]),
	}
}

// Get returns the cached value for key or calls fetch once to populate it.
// fetch runs detached from the caller's cancellation, so one impatient caller
// does not fail the others waiting on the same key.
func (c *Cache[V]) Get(ctx context.Context, key model.CacheKey, fetch func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key.String(), func() (any, error) {
		// Double-check: a concurrent call may have filled the entry between lookup and DoChan.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		fetchCtx := context.WithoutCancel(ctx)
		if v, ok := c.loadStored(fetchCtx, key); ok {
			c.put(key, v, c.now())
			return v, nil
		}

		v, err := fetch(fetchCtx)
		if err != nil {
			return v, err
		}
		fetchedAt := c.now()
		c.put(key, v, fetchedAt)
		c.saveStored(fetchCtx, key, v, fetchedAt)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		var zero V
		return zero, fmt.Errorf("waiting for %s: %w", key, ctx.Err())
	}
}

// Invalidate drops key from both tiers. The next Get refetches.
func (c *Cache[V]) Invalidate(ctx context.Context, key model.CacheKey) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key.String())

	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, key); err != nil {
		slog.Warn("deleting stored key material", "key", key.String(), "error", err)
	}
}

// Len returns the number of entries held in memory, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[V]) lookup(key model.CacheKey) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.expired(e.fetchedAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) put(key model.CacheKey, v V, fetchedAt time.Time) {
	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{value: v, fetchedAt: fetchedAt}
	c.mu.Unlock()
}

func (c *Cache[V]) expired(fetchedAt time.Time) bool {
	return c.ttl > 0 && c.now().Sub(fetchedAt) >= c.ttl
}

// loadStored reads the persistent tier. Store failures degrade to a miss.
func (c *Cache[V]) loadStored(ctx context.Context, key model.CacheKey) (V, bool) {
	var zero V
	if c.store == nil {
		return zero, false
	}

	rec, found, err := c.store.Load(ctx, key)
	if err != nil {
		slog.Warn("loading stored key material", "key", key.String(), "error", err)
		return zero, false
	}
	if !found || c.expired(rec.FetchedAt) {
		return zero, false
	}

	var v V
	if err := json.Unmarshal(rec.Payload, &v); err != nil {
		slog.Warn("decoding stored key material", "key", key.String(), "error", err)
		return zero, false
	}
	slog.Debug("key material loaded from store", "key", key.String())
	return v, true
}

func (c *Cache[V]) saveStored(ctx context.Context, key model.CacheKey, v V, fetchedAt time.Time) {
	if c.store == nil {
		return
	}

	payload, err := json.Marshal(v)
	if err != nil {
		slog.Warn("encoding key material", "key", key.String(), "error", err)
		return
	}
	rec := model.KeyRecord{Key: key, Payload: payload, FetchedAt: fetchedAt}
	if err := c.store.Save(ctx, rec); err != nil {
		slog.Warn("saving key material", "key", key.String(), "error", err)
	}
}
