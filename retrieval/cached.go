package retrieval

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/genflow-ai/genflow/internal/cache"
)

// CachedRetriever decorates a Retriever with a Redis result cache. Cache
// failures are logged and fall through to the inner retriever, never failing
// the search.
type CachedRetriever struct {
	inner  Retriever
	cache  *cache.Manager
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedRetriever wraps inner with a result cache.
func NewCachedRetriever(inner Retriever, mgr *cache.Manager, ttl time.Duration, logger *zap.Logger) *CachedRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &CachedRetriever{
		inner:  inner,
		cache:  mgr,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "cached_retriever")),
	}
}

func cacheKey(q Query) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d|%g", q.Text, q.DocumentID, q.MaxResults, q.SimilarityThreshold))
	return fmt.Sprintf("retrieval:%x", sum[:16])
}

// Search implements Retriever.
func (c *CachedRetriever) Search(ctx context.Context, q Query) ([]Passage, error) {
	key := cacheKey(q)

	var cached []Passage
	err := c.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		c.logger.Debug("retrieval cache hit", zap.String("key", key))
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("retrieval cache read failed", zap.Error(err))
	}

	passages, err := c.inner.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetJSON(ctx, key, passages, c.ttl); err != nil {
		c.logger.Warn("retrieval cache write failed", zap.Error(err))
	}
	return passages, nil
}
