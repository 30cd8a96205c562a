package ingress

import (
	"context"

	"github.com/integration-os/core/internal/domain"
)

// EventStore persists the immutable Event record created on ingress.
type EventStore interface {
	Insert(ctx context.Context, event domain.Event) error
}
