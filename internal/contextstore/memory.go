package contextstore

import (
	"context"
	"sync"
	"time"

	"github.com/integration-os/core/internal/domain"
)

// MemoryStore is a thread-safe, append-only in-memory Store, used by
// dispatcher and watchdog unit tests. It keeps every append (never
// overwrites), exactly mirroring the durable store's append-only shape.
type MemoryStore struct {
	mu         sync.RWMutex
	roots      []domain.RootContext
	pipelines  []domain.PipelineContext
	extractors []domain.ExtractorContext
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendRoot appends a RootContext snapshot.
func (s *MemoryStore) AppendRoot(_ context.Context, rc domain.RootContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roots = append(s.roots, rc)

	return nil
}

// AppendPipeline appends a PipelineContext snapshot.
func (s *MemoryStore) AppendPipeline(_ context.Context, pc domain.PipelineContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pipelines = append(s.pipelines, pc)

	return nil
}

// AppendExtractor appends an ExtractorContext snapshot.
func (s *MemoryStore) AppendExtractor(_ context.Context, ec domain.ExtractorContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.extractors = append(s.extractors, ec)

	return nil
}

// LatestRoot returns the most recent root snapshot for eventKey.
func (s *MemoryStore) LatestRoot(_ context.Context, eventKey domain.Id) (domain.RootContext, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.roots) - 1; i >= 0; i-- {
		if s.roots[i].EventKey == eventKey {
			return s.roots[i], true, nil
		}
	}

	return domain.RootContext{}, false, nil
}

// LatestPipeline returns the most recent pipeline context for (eventKey,
// pipelineKey).
func (s *MemoryStore) LatestPipeline(
	_ context.Context,
	eventKey domain.Id,
	pipelineKey string,
) (domain.PipelineContext, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.pipelines) - 1; i >= 0; i-- {
		pc := s.pipelines[i]
		if pc.EventKey == eventKey && pc.PipelineKey == pipelineKey {
			return pc, true, nil
		}
	}

	return domain.PipelineContext{}, false, nil
}

// ChainExtractors returns every extractor context appended for (eventKey,
// pipelineKey), oldest first.
func (s *MemoryStore) ChainExtractors(
	_ context.Context,
	eventKey domain.Id,
	pipelineKey string,
) ([]domain.ExtractorContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chain []domain.ExtractorContext

	for _, ec := range s.extractors {
		if ec.EventKey == eventKey && ec.PipelineKey == pipelineKey {
			chain = append(chain, ec)
		}
	}

	return chain, nil
}

// StaleExtractors returns extractor contexts still in stage New whose
// timestamp is older than olderThan, for the watchdog's orphan sweep. Only
// the latest context per (eventKey, pipelineKey, extractorKey) chain is
// considered: a New extractor that later completed is not stale even if
// its New row is old.
func (s *MemoryStore) StaleExtractors(_ context.Context, olderThan time.Time) ([]domain.ExtractorContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type chainKey struct {
		event     domain.Id
		pipeline  string
		extractor string
	}

	latest := map[chainKey]domain.ExtractorContext{}

	for _, ec := range s.extractors {
		key := chainKey{ec.EventKey, ec.PipelineKey, ec.ExtractorKey}
		latest[key] = ec
	}

	var stale []domain.ExtractorContext

	for _, ec := range latest {
		if ec.Stage.Name == domain.StageNew && ec.Timestamp.Before(olderThan) {
			stale = append(stale, ec)
		}
	}

	return stale, nil
}
