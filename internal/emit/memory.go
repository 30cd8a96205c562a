package emit

import (
	"context"
	"strconv"
	"sync"

	"github.com/integration-os/core/internal/domain"
)

// MemoryStore is a thread-safe in-memory IdempotencyStore, DeadLetterStore,
// and OffsetStore, used by the emit package's own unit and property-based
// tests (the concurrent-publish dedup test in particular).
type MemoryStore struct {
	mu          sync.Mutex
	claimed     map[string]domain.Idempotency
	deadLetters []domain.DeadLetter
	offsets     map[string]int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claimed: map[string]domain.Idempotency{},
		offsets: map[string]int64{},
	}
}

// Insert claims idem.Key if unclaimed. The whole check-then-set happens
// under one lock so concurrent callers sharing a key race correctly:
// exactly one sees inserted=true.
func (s *MemoryStore) Insert(_ context.Context, idem domain.Idempotency) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.claimed[idem.Key]; exists {
		return false, nil
	}

	s.claimed[idem.Key] = idem

	return true, nil
}

// Append records a dead-lettered record.
func (s *MemoryStore) Append(_ context.Context, dl domain.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deadLetters = append(s.deadLetters, dl)

	return nil
}

// DeadLetters returns a snapshot of every appended dead letter, for test
// assertions.
func (s *MemoryStore) DeadLetters() []domain.DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.DeadLetter, len(s.deadLetters))
	copy(out, s.deadLetters)

	return out
}

func offsetKey(topic string, partition int32) string {
	return topic + "#" + strconv.Itoa(int(partition))
}

// CommitOffset records the last processed offset for (topic, partition).
func (s *MemoryStore) CommitOffset(_ context.Context, topic string, partition int32, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offsets[offsetKey(topic, partition)] = offset

	return nil
}

// LastOffset returns the last committed offset for (topic, partition).
func (s *MemoryStore) LastOffset(_ context.Context, topic string, partition int32) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset, ok := s.offsets[offsetKey(topic, partition)]

	return offset, ok, nil
}
