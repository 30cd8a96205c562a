package credential

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/ioserr"
)

// Cache is a bounded, time-expiring mapping from raw access-key header
// value to decoded EventAccess. A miss falls through to Store under a
// per-key single-flight lock so a burst of concurrent requests for the
// same key issues exactly one store read.
type Cache struct {
	entries *lru.LRU[string, domain.EventAccess]
	group   singleflight.Group
	store   Store
}

// NewCache builds a Cache of the given size and TTL backed by store.
func NewCache(size int, ttl time.Duration, store Store) *Cache {
	return &Cache{
		entries: lru.NewLRU[string, domain.EventAccess](size, nil, ttl),
		store:   store,
	}
}

// Get returns the EventAccess for key, filling the cache from the durable
// store on a miss. On not-found it returns Unauthorized.
func (c *Cache) Get(ctx context.Context, key string) (domain.EventAccess, error) {
	if access, ok := c.entries.Get(key); ok {
		return access, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		if access, ok := c.entries.Get(key); ok {
			return access, nil
		}

		access, found, err := c.store.FindByKey(ctx, key)
		if err != nil {
			return domain.EventAccess{}, ioserr.Wrap(ioserr.Internal, "lookup event access", err)
		}

		if !found {
			return domain.EventAccess{}, ioserr.New(ioserr.Unauthorized, "unknown access key")
		}

		c.entries.Add(key, access)

		return access, nil
	})
	if err != nil {
		return domain.EventAccess{}, err
	}

	return result.(domain.EventAccess), nil
}

// Invalidate removes key's entry, if any. Entries are otherwise immutable
// once inserted -- callers replace, they never mutate in place.
func (c *Cache) Invalidate(key string) {
	c.entries.Remove(key)
}
