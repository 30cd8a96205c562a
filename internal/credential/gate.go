package credential

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/ioserr"
	"github.com/integration-os/core/internal/storage"
)

// Gate is the credential/access checkpoint the ingress handler consults
// before admitting an event: cached EventAccess lookup, access-key
// verification, and a per-key rolling-1s throughput ceiling.
type Gate struct {
	cache    *Cache
	limiters *limiterSet
}

// NewGate builds a Gate backed by cache for lookups and a fresh
// per-access-key limiter set for throughput accounting.
func NewGate(cache *Cache) *Gate {
	return &Gate{cache: cache, limiters: newLimiterSet()}
}

// Admit verifies rawKey against the cached EventAccess, checks the event
// type against the access record's type, and enforces the throughput
// ceiling. It returns the resolved EventAccess on success.
func (g *Gate) Admit(ctx context.Context, rawKey, eventType string) (domain.EventAccess, error) {
	parsed, err := storage.ParseAccessKey(rawKey)
	if err != nil {
		performDummyBcryptComparison()

		return domain.EventAccess{}, ioserr.Wrap(ioserr.Unauthorized, "invalid access key", err)
	}

	access, err := g.cache.Get(ctx, storage.ComputeKeyLookupHash(parsed))
	if err != nil {
		performDummyBcryptComparison()

		return domain.EventAccess{}, err
	}

	if !storage.CompareAPIKeyHash(access.AccessKey, parsed) {
		return domain.EventAccess{}, ioserr.New(ioserr.Unauthorized, "access key mismatch")
	}

	if !access.AllowsType(eventType) {
		return domain.EventAccess{}, ioserr.New(ioserr.Forbidden, "event type not permitted")
	}

	if !g.limiters.allow(access.Key, access.Throughput) {
		return domain.EventAccess{}, ioserr.New(ioserr.TooManyRequests, "throughput exceeded")
	}

	return access, nil
}

// performDummyBcryptComparison burns the same time as a real bcrypt
// comparison on failure paths that skip it, so lookup-miss and
// verify-mismatch are indistinguishable from response timing.
func performDummyBcryptComparison() {
	_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$dummy.dummy.dummy.dummy.dummy.dummy.dummy.dummy.dummy."), []byte("dummy"))
}

// limiterSet holds one rate.Limiter per access key, each refilling at the
// key's own throughput ceiling per second. Counters are process-local;
// sharding across processes is an operational concern.
type limiterSet struct {
	mu    sync.RWMutex
	byKey map[string]*rate.Limiter
}

func newLimiterSet() *limiterSet {
	return &limiterSet{byKey: map[string]*rate.Limiter{}}
}

func (s *limiterSet) allow(key string, throughput uint64) bool {
	if throughput == 0 {
		throughput = domain.DefaultThroughput
	}

	s.mu.RLock()
	limiter, ok := s.byKey[key]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		limiter, ok = s.byKey[key]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(throughput), int(throughput))
			s.byKey[key] = limiter
		}
		s.mu.Unlock()
	}

	return limiter.AllowN(time.Now(), 1)
}
