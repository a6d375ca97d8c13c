// Package cache holds the redis-backed page cache and submission locks.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	apperrors "carepulse/internal/common/errors"
	"carepulse/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	viewPrefix       = "view:"
	generationPrefix = "view-gen:"
)

func ViewKey(path string) string {
	return viewPrefix + path
}

// GenerationKey holds how many times path has been revalidated.
func GenerationKey(path string) string {
	return generationPrefix + path
}

// setIfCurrent stores ARGV[2] under KEYS[1] only while the generation in
// KEYS[2] still equals ARGV[1]. ARGV[3] is the ttl in milliseconds, zero
// meaning no expiry.
var setIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// ViewCache stores computed page data keyed by the page path. Writes that
// change what a page shows revalidate it, and the next read recomputes.
// A reader takes the Generation before computing and stores with
// SetIfCurrent, so data computed across a revalidation is never cached.
type ViewCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewViewCache(client redis.Cmdable, ttl time.Duration) *ViewCache {
	return &ViewCache{client: client, ttl: ttl}
}

// Get decodes the cached value for path into dest. A miss returns false.
func (c *ViewCache) Get(ctx context.Context, path string, dest interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, ViewKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewCacheFailedError("get", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, apperrors.NewCacheFailedError("decode", err)
	}
	return true, nil
}

// Generation returns the revalidation count of path, zero if it was never
// revalidated.
func (c *ViewCache) Generation(ctx context.Context, path string) (int64, error) {
	gen, err := c.client.Get(ctx, GenerationKey(path)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.NewCacheFailedError("generation", err)
	}
	return gen, nil
}

// SetIfCurrent caches value for path unless path was revalidated after
// generation was read. It reports whether the value was stored.
func (c *ViewCache) SetIfCurrent(ctx context.Context, path string, generation int64, value interface{}) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, apperrors.NewCacheFailedError("encode", err)
	}
	stored, err := setIfCurrent.Run(ctx, c.client,
		[]string{ViewKey(path), GenerationKey(path)},
		strconv.FormatInt(generation, 10), raw, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, apperrors.NewCacheFailedError("set", err)
	}
	return stored == 1, nil
}

// Revalidate drops the cached data for every path and moves each path to
// its next generation.
func (c *ViewCache) Revalidate(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = ViewKey(p)
		metrics.ViewRevalidations.WithLabelValues(p).Inc()
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range paths {
			pipe.Incr(ctx, GenerationKey(p))
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return apperrors.NewCacheFailedError("revalidate", err)
	}
	return nil
}
