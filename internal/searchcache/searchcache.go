// Package searchcache stores precomputed search results. Every query is
// cached twice, once per exactness flag.
package searchcache

import (
	"context"
	"fmt"

	"smj-library/internal/metrics"
	"smj-library/internal/model"
	"smj-library/internal/search"
	"smj-library/internal/store"
)

// Cache reads and writes results in a store bucket.
type Cache struct {
	bucket store.Bucket
	codec  *store.Codec
}

func New(bucket store.Bucket, codec *store.Codec) *Cache {
	return &Cache{bucket: bucket, codec: codec}
}

// Key is the entry key of q under the given exactness.
func Key(q search.Query, exact bool) string {
	flag := 0
	if exact {
		flag = 1
	}
	return fmt.Sprintf("%s %d", q.String(), flag)
}

// Refresh drops both entries for q and recomputes them against snap.
func (c *Cache) Refresh(ctx context.Context, snap search.Snapshot, q search.Query) error {
	for _, exact := range []bool{true, false} {
		key := Key(q, exact)
		if _, err := c.bucket.Delete(ctx, key); err != nil {
			return err
		}
		res, err := snap.Find(ctx, q, exact)
		if err != nil {
			return fmt.Errorf("search %q: %w", key, err)
		}
		data, err := c.codec.Marshal(res)
		if err != nil {
			return err
		}
		if err := c.bucket.Put(ctx, key, data); err != nil {
			return err
		}
		metrics.RecordCacheRefresh(metrics.CacheSearch)
	}
	return nil
}

// Lookup returns the cached result for q. A miss is reported with ok false.
func (c *Cache) Lookup(ctx context.Context, q search.Query, exact bool) (search.Result, bool, error) {
	data, ok, err := c.bucket.Get(ctx, Key(q, exact))
	if err != nil || !ok {
		return search.Result{}, false, err
	}
	var res search.Result
	if err := c.codec.Unmarshal(data, &res); err != nil {
		return search.Result{}, false, err
	}
	if res.Tracks == nil {
		res.Tracks = []model.Track{}
	}
	return res, true, nil
}
