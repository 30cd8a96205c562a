package emit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/integration-os/core/internal/domain"
)

// TestIdempotencyStore_ConcurrentInsertsClaimExactlyOnce drives K
// concurrent claims of the same idempotency key through MemoryStore, the
// same Insert contract PostgresStore implements over a unique index:
// exactly one caller must observe inserted=true.
func TestIdempotencyStore_ConcurrentInsertsClaimExactlyOnce(t *testing.T) {
	const concurrency = 50

	store := NewMemoryStore()
	key := "idem-shared-key"

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		declined int
	)

	start := make(chan struct{})

	for i := 0; i < concurrency; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			<-start

			inserted, err := store.Insert(context.Background(), domain.Idempotency{
				Key:       key,
				CreatedAt: time.Now().UTC(),
			})
			require.NoError(t, err)

			mu.Lock()
			defer mu.Unlock()

			if inserted {
				accepted++
			} else {
				declined++
			}
		}()
	}

	close(start)
	wg.Wait()

	require.Equal(t, 1, accepted)
	require.Equal(t, concurrency-1, declined)
}

func TestDeduplication_ProbeTracksSeenHashes(t *testing.T) {
	dedup := NewDeduplication(16)

	first := dedup.Probe("fnv:abc123")
	require.False(t, first.PossibleCollision)

	second := dedup.Probe("fnv:abc123")
	require.True(t, second.PossibleCollision)

	distinct := dedup.Probe("fnv:def456")
	require.False(t, distinct.PossibleCollision)
}
