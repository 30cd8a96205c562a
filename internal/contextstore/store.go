// Package contextstore implements the append-only log of per-stage
// execution context the dispatcher writes to and the watchdog reads from.
package contextstore

import (
	"context"
	"time"

	"github.com/integration-os/core/internal/domain"
)

// Store is the append-only context log. Every append is durable before
// the dispatcher is permitted to transition to the next state.
type Store interface {
	AppendRoot(ctx context.Context, rc domain.RootContext) error
	AppendPipeline(ctx context.Context, pc domain.PipelineContext) error
	AppendExtractor(ctx context.Context, ec domain.ExtractorContext) error

	// LatestRoot returns the most recent root snapshot for eventKey.
	LatestRoot(ctx context.Context, eventKey domain.Id) (domain.RootContext, bool, error)
	// LatestPipeline returns the most recent pipeline context for
	// (eventKey, pipelineKey).
	LatestPipeline(ctx context.Context, eventKey domain.Id, pipelineKey string) (domain.PipelineContext, bool, error)
	// ChainExtractors returns every extractor context appended for
	// (eventKey, pipelineKey), oldest first, for audit use.
	ChainExtractors(ctx context.Context, eventKey domain.Id, pipelineKey string) ([]domain.ExtractorContext, error)

	// StaleExtractors returns extractor contexts still in stage New whose
	// timestamp is older than olderThan, for the watchdog's orphan sweep.
	StaleExtractors(ctx context.Context, olderThan time.Time) ([]domain.ExtractorContext, error)
}

// MaybeSettleRoot appends a terminal RootContext for eventKey once every
// child pipeline the root references has dropped. It is called both by the
// watchdog's timeout sweep and by the ingress handler when a dispatcher run
// reports a drop, so a root
// whose last child drops during normal dispatch gets the same aggregated
// terminal row a timeout would have produced instead of only ever settling
// on the next sweep. reason becomes the root's own drop reason; callers
// pass their own (e.g. "timeout", or the dropped child's reason).
func MaybeSettleRoot(ctx context.Context, store Store, eventKey domain.Id, reason string) error {
	root, found, err := store.LatestRoot(ctx, eventKey)
	if err != nil || !found || root.Status.IsDropped() {
		return err
	}

	children := make([]domain.PipelineContext, 0, len(root.Children))

	for _, key := range root.Children {
		pc, found, err := store.LatestPipeline(ctx, eventKey, key)
		if err != nil {
			return err
		}

		if found {
			children = append(children, pc)
		}
	}

	if !root.IsComplete(children) {
		return nil
	}

	allDropped := true

	for _, child := range children {
		if !child.Status.IsDropped() {
			allDropped = false

			break
		}
	}

	if !allDropped {
		return nil
	}

	return store.AppendRoot(ctx, domain.RootContext{
		EventKey:  eventKey,
		Status:    domain.StatusDropped(reason),
		Children:  root.Children,
		Timestamp: time.Now().UTC(),
	})
}
