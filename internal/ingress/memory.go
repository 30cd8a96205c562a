package ingress

import (
	"context"
	"sync"

	"github.com/integration-os/core/internal/domain"
)

// MemoryStore is a thread-safe in-memory EventStore, used by ingress unit
// tests.
type MemoryStore struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends event.
func (s *MemoryStore) Insert(_ context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)

	return nil
}

// Events returns a snapshot of every inserted event, for test assertions.
func (s *MemoryStore) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Event, len(s.events))
	copy(out, s.events)

	return out
}
