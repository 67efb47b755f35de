// Package cache decorates a catalog backend with a Redis-backed result
// cache. Counts and fetched pages are keyed by backend name and predicate;
// concurrent identical lookups share one backend call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/predicate"
	"github.com/eigenbahn/dynix/pkg/metrics"
)

const keyPrefix = "opac:"

// Store is the key-value side of the cache; pkg/redis.Client satisfies it.
type Store interface {
	Lookup(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type flusher interface {
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Backend is a caching catalog.Backend. Dialect, compiler and field
// resolution pass through to the wrapped backend.
type Backend struct {
	catalog.Backend
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
	logger  *slog.Logger
}

// Wrap returns next with caching. m may be nil.
func Wrap(next catalog.Backend, store Store, ttl time.Duration, m *metrics.Metrics) *Backend {
	return &Backend{
		Backend: next,
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "result-cache", "backend", next.Name()),
	}
}

func (b *Backend) Count(ctx context.Context, p predicate.Predicate) (int, error) {
	var n int
	err := b.getOrCompute(ctx, b.key("count", p), &n, func() (any, error) {
		return b.Backend.Count(ctx, p)
	})
	return n, err
}

func (b *Backend) FetchDetailed(ctx context.Context, p predicate.Predicate) ([]catalog.Item, error) {
	var items []catalog.Item
	err := b.getOrCompute(ctx, b.key("fetch", p), &items, func() (any, error) {
		return b.Backend.FetchDetailed(ctx, p)
	})
	return items, err
}

// Invalidate drops every cached entry of this backend, when the store can
// scan keys.
func (b *Backend) Invalidate(ctx context.Context) error {
	f, ok := b.store.(flusher)
	if !ok {
		return nil
	}
	deleted, err := f.FlushByPattern(ctx, keyPrefix+b.Name()+":*")
	if err != nil {
		return fmt.Errorf("invalidating cache for %s: %w", b.Name(), err)
	}
	b.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (b *Backend) Stats() (hits, misses int64) {
	return b.hits.Load(), b.misses.Load()
}

// getOrCompute decodes a cached value into out, or runs compute once per
// key and stores its result. Cache failures degrade to a miss.
func (b *Backend) getOrCompute(ctx context.Context, key string, out any, compute func() (any, error)) error {
	if b.lookup(ctx, key, out) {
		return nil
	}
	val, err, _ := b.group.Do(key, func() (any, error) {
		v, err := compute()
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding cache entry: %w", err)
		}
		if err := b.store.Store(ctx, key, data, b.ttl); err != nil {
			b.logger.Error("cache set failed", "key", key, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(val.([]byte), out)
}

func (b *Backend) lookup(ctx context.Context, key string, out any) bool {
	data, found, err := b.store.Lookup(ctx, key)
	if err != nil {
		b.logger.Error("cache get failed", "key", key, "error", err)
	}
	if found && err == nil {
		if err := json.Unmarshal(data, out); err == nil {
			b.hit()
			return true
		}
		b.logger.Error("cache entry corrupt", "key", key)
	}
	b.miss()
	return false
}

func (b *Backend) hit() {
	b.hits.Add(1)
	if b.metrics != nil {
		b.metrics.CacheHitsTotal.WithLabelValues(b.Name()).Inc()
	}
}

func (b *Backend) miss() {
	b.misses.Add(1)
	if b.metrics != nil {
		b.metrics.CacheMissesTotal.WithLabelValues(b.Name()).Inc()
	}
}

func (b *Backend) key(op string, p predicate.Predicate) string {
	hash := sha256.Sum256([]byte(op + "|" + p.Key()))
	return keyPrefix + b.Name() + ":" + op + ":" + strconv.Itoa(len(p.Args)) + ":" + fmt.Sprintf("%x", hash[:16])
}
