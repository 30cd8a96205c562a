// Package controldata is the authoritative read side for connections,
// pipelines, extractors, and destinations. It is read-only from the core's
// perspective: pipelines are authored externally (the CRUD surface named
// as an external collaborator in spec.md §1) and only searched here.
package controldata

import (
	"context"

	"github.com/integration-os/core/internal/domain"
)

// PipelineStore is the read side the event handler consults to find every
// pipeline subscribing to an inbound event.
type PipelineStore interface {
	// FindBySource returns every Pipeline whose Source matches
	// (eventType, eventName, group), per spec.md §4.1 step 5.
	FindBySource(ctx context.Context, eventType, eventName, group string) ([]domain.Pipeline, error)
	// FindByKey returns a single pipeline by its key, for callers that need
	// a pipeline outside the hot path.
	FindByKey(ctx context.Context, key string) (domain.Pipeline, bool, error)
}

// ConnectionStore is the read/update side emit handlers use to mutate a
// Connection's lifecycle flags (deprecated/active) without erasing history.
type ConnectionStore interface {
	FindByID(ctx context.Context, id domain.Id) (domain.Connection, bool, error)
	Update(ctx context.Context, conn domain.Connection) error
}
