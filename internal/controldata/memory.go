package controldata

import (
	"context"
	"sync"

	"github.com/integration-os/core/internal/domain"
)

// MemoryStore is a thread-safe in-memory PipelineStore/ConnectionStore,
// used by tests and by the emit package's own unit tests in place of a
// mock library, following the teacher's InMemoryKeyStore pattern
// (sync.RWMutex + map).
type MemoryStore struct {
	mu          sync.RWMutex
	pipelines   map[string]domain.Pipeline
	connections map[domain.Id]domain.Connection
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pipelines:   map[string]domain.Pipeline{},
		connections: map[domain.Id]domain.Connection{},
	}
}

// PutPipeline inserts or replaces a pipeline, keyed by its Key field.
func (s *MemoryStore) PutPipeline(p domain.Pipeline) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pipelines[p.Key] = p
}

// PutConnection inserts or replaces a connection, keyed by its ID.
func (s *MemoryStore) PutConnection(c domain.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections[c.ID] = c
}

// FindBySource returns every pipeline whose Source matches the given
// event type, name, and access group.
func (s *MemoryStore) FindBySource(_ context.Context, eventType, eventName, group string) ([]domain.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.Pipeline

	for _, p := range s.pipelines {
		if p.Source.Matches(eventType, eventName, group) {
			matches = append(matches, p)
		}
	}

	return matches, nil
}

// FindByKey returns a single pipeline by its key.
func (s *MemoryStore) FindByKey(_ context.Context, key string) (domain.Pipeline, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pipelines[key]

	return p, ok, nil
}

// FindByID returns a connection by its id.
func (s *MemoryStore) FindByID(_ context.Context, id domain.Id) (domain.Connection, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.connections[id]

	return c, ok, nil
}

// Update replaces the stored connection in place.
func (s *MemoryStore) Update(_ context.Context, conn domain.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections[conn.ID] = conn

	return nil
}
