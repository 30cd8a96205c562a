package controldata

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/integration-os/core/internal/domain"
)

// CachedPipelineStore wraps a PipelineStore with a bounded, time-expiring
// cache keyed by the (type, name, group) source tuple, matching spec.md
// §2's "Definition Caches" for pipeline/connection/OAuth/model/schema
// definitions. A miss falls through to the wrapped store; entries are
// replaced wholesale on write, never mutated in place.
type CachedPipelineStore struct {
	inner   PipelineStore
	entries *lru.LRU[string, []domain.Pipeline]
}

// NewCachedPipelineStore builds a CachedPipelineStore of the given size
// and TTL wrapping inner.
func NewCachedPipelineStore(size int, ttl time.Duration, inner PipelineStore) *CachedPipelineStore {
	return &CachedPipelineStore{
		inner:   inner,
		entries: lru.NewLRU[string, []domain.Pipeline](size, nil, ttl),
	}
}

func sourceCacheKey(eventType, eventName, group string) string {
	return strings.Join([]string{eventType, eventName, group}, "\x00")
}

// FindBySource returns the cached match set for (eventType, eventName,
// group), filling the cache from inner on a miss.
func (c *CachedPipelineStore) FindBySource(ctx context.Context, eventType, eventName, group string) ([]domain.Pipeline, error) {
	key := sourceCacheKey(eventType, eventName, group)

	if cached, ok := c.entries.Get(key); ok {
		return cached, nil
	}

	matches, err := c.inner.FindBySource(ctx, eventType, eventName, group)
	if err != nil {
		return nil, err
	}

	c.entries.Add(key, matches)

	return matches, nil
}

// FindByKey bypasses the source-tuple cache; it is used off the hot path.
func (c *CachedPipelineStore) FindByKey(ctx context.Context, key string) (domain.Pipeline, bool, error) {
	return c.inner.FindByKey(ctx, key)
}
