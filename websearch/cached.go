package websearch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/genflow-ai/genflow/internal/cache"
)

// CachedSearcher decorates a Searcher with a Redis result cache. Web results
// go stale quickly, so the default TTL is short. Cache failures fall through
// to the inner searcher.
type CachedSearcher struct {
	inner  Searcher
	cache  *cache.Manager
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedSearcher wraps inner with a result cache.
func NewCachedSearcher(inner Searcher, mgr *cache.Manager, ttl time.Duration, logger *zap.Logger) *CachedSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &CachedSearcher{
		inner:  inner,
		cache:  mgr,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "cached_searcher")),
	}
}

func searchKey(query string, maxResults int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d", query, maxResults))
	return fmt.Sprintf("websearch:%x", sum[:16])
}

// Search implements Searcher.
func (c *CachedSearcher) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	key := searchKey(query, maxResults)

	var cached []Result
	err := c.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		c.logger.Debug("web search cache hit", zap.String("key", key))
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("web search cache read failed", zap.Error(err))
	}

	results, err := c.inner.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetJSON(ctx, key, results, c.ttl); err != nil {
		c.logger.Warn("web search cache write failed", zap.Error(err))
	}
	return results, nil
}
