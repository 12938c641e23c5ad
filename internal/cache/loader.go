package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader reads through a Cache, collapsing concurrent misses for the same key
// into one call. Cache failures are logged and never fail the request.
type Loader struct {
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
	sf    singleflight.Group
}

// NewLoader creates a Loader that stores entries for ttl.
func NewLoader(c Cache, ttl time.Duration, log *zap.Logger) *Loader {
	return &Loader{cache: c, ttl: ttl, log: log}
}

// Load returns the cached value for key, or calls fn and caches its result.
// Errors from fn are returned as-is and nothing is cached. fn runs on a
// context detached from ctx's cancellation, since its result is shared by
// every caller waiting on the same key.
func Load[T any](ctx context.Context, l *Loader, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if b, ok, err := l.cache.Get(ctx, key); err != nil {
		l.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var v T
		if err := json.Unmarshal(b, &v); err == nil {
			return v, nil
		}
		l.log.Warn("discarding undecodable cache entry", zap.String("key", key))
	}

	res, err, _ := l.sf.Do(key, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		if b, err := json.Marshal(v); err != nil {
			l.log.Warn("encoding cache entry", zap.String("key", key), zap.Error(err))
		} else if err := l.cache.Set(ctx, key, b, l.ttl); err != nil {
			l.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

// Invalidate removes keys from the cache.
func (l *Loader) Invalidate(ctx context.Context, keys ...string) {
	if err := l.cache.Delete(ctx, keys...); err != nil {
		l.log.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
