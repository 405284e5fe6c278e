// Package answercache memoizes protocol command answers. Answers are
// computed ahead of time by Refresh; the handlers installed in a registry
// only ever read the cache and fall through to the original handler on a
// miss.
package answercache

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"smj-library/internal/cachekey"
	"smj-library/internal/metrics"
	"smj-library/internal/protocol"
	"smj-library/internal/search"
	"smj-library/internal/store"
)

var ErrUnbound = errors.New("answer cache is not bound to a transaction")

// Commands are the handlers cached by default.
var Commands = []string{"count", "find", "list"}

// Cache stores answers in a store bucket under normalized keys.
type Cache struct {
	bucket     store.Bucket
	codec      *store.Codec
	normalizer *cachekey.Normalizer
	originals  map[string]protocol.Handler
	logger     *zap.Logger
}

func New(codec *store.Codec, normalizer *cachekey.Normalizer, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		codec:      codec,
		normalizer: normalizer,
		originals:  make(map[string]protocol.Handler),
		logger:     logger,
	}
}

// Bind points the cache at the bucket of the current transaction. An
// unbound cache misses every lookup.
func (c *Cache) Bind(bucket store.Bucket) {
	c.bucket = bucket
}

// Install wraps each named handler of r with a cache lookup and keeps the
// original for Refresh.
func (c *Cache) Install(r *protocol.Registry, names ...string) error {
	for _, name := range names {
		if _, ok := c.originals[name]; ok {
			continue
		}
		original, err := r.Wrap(name, func(next protocol.Handler) protocol.Handler {
			return &cached{cache: c, name: name, next: next}
		})
		if err != nil {
			return err
		}
		c.originals[name] = original
	}
	return nil
}

// Key returns the normalized key of a command.
func (c *Cache) Key(command string, args ...string) string {
	return c.normalizer.Key(command, args)
}

// Lookup returns the cached answer. A miss is reported with ok false.
func (c *Cache) Lookup(ctx context.Context, command string, args ...string) (protocol.Answer, bool, error) {
	if c.bucket == nil {
		return nil, false, nil
	}
	data, ok, err := c.bucket.Get(ctx, c.Key(command, args...))
	if err != nil || !ok {
		return nil, false, err
	}
	var ans protocol.Answer
	if err := c.codec.Unmarshal(data, &ans); err != nil {
		return nil, false, err
	}
	return ans, true, nil
}

// Refresh runs the original handler of command against pc and stores its
// answer, replacing any previous one.
func (c *Cache) Refresh(ctx context.Context, pc protocol.Context, command string, args ...string) error {
	h, ok := c.originals[command]
	if !ok {
		return fmt.Errorf("%w: %s is not cached", protocol.ErrUnknownCommand, command)
	}
	if c.bucket == nil {
		return ErrUnbound
	}

	key := c.Key(command, args...)
	if _, err := c.bucket.Delete(ctx, key); err != nil {
		return err
	}
	ans, err := h.Serve(ctx, pc, args)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", key, err)
	}
	data, err := c.codec.Marshal(ans)
	if err != nil {
		return err
	}
	if err := c.bucket.Put(ctx, key, data); err != nil {
		return err
	}
	metrics.RecordCacheRefresh(metrics.CacheAnswer)
	return nil
}

// cached serves answers from the cache, falling through to next on a miss.
// Misses are not stored: only Refresh populates the cache.
type cached struct {
	cache *Cache
	name  string
	next  protocol.Handler
}

func (h *cached) Serve(ctx context.Context, pc protocol.Context, args []string) (protocol.Answer, error) {
	ans, ok, err := h.cache.Lookup(ctx, h.name, args...)
	if err != nil {
		h.cache.logger.Warn("answer cache lookup failed",
			zap.String("command", h.name), zap.Strings("args", args), zap.Error(err))
	}
	metrics.RecordCacheLookup(metrics.CacheAnswer, ok)
	if ok {
		return ans, nil
	}
	h.cache.logger.Debug("answer cache miss",
		zap.String("key", h.cache.Key(h.name, args...)))
	return h.next.Serve(ctx, pc, args)
}

// SnapshotContext answers handler reads from a search snapshot. It is the
// context handlers run against during Refresh.
type SnapshotContext struct {
	Snapshot search.Snapshot
}

func (s SnapshotContext) FindExact(ctx context.Context, q search.Query) (search.Result, error) {
	return s.Snapshot.Find(ctx, q, true)
}
