package credential

import (
	"context"
	"sync"

	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/storage"
)

// MemoryStore is a thread-safe in-memory EventAccess store, used by tests
// and by the emit/dispatcher packages' own unit tests rather than a mock
// library.
type MemoryStore struct {
	mu     sync.RWMutex
	byHash map[string]domain.EventAccess
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byHash: map[string]domain.EventAccess{}}
}

// FindByKey looks up an EventAccess by its key lookup hash.
func (s *MemoryStore) FindByKey(_ context.Context, lookupHash string) (domain.EventAccess, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	access, ok := s.byHash[lookupHash]

	return access, ok, nil
}

// Put inserts or replaces access, keyed by the lookup hash of its
// plaintext access key.
func (s *MemoryStore) Put(plainAccessKey string, access domain.EventAccess) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byHash[storage.ComputeKeyLookupHash(plainAccessKey)] = access
}
