// Package credential implements the access-key gate the ingress handler
// consults before admitting an event: cached EventAccess lookup, bcrypt
// access-key verification, an event-type check, and a rolling-1s
// throughput ceiling.
package credential

import (
	"context"

	"github.com/integration-os/core/internal/domain"
)

// Store is the durable read side for EventAccess records, keyed by the
// SHA-256 lookup hash of the access key. The credential gate falls through
// to it on a cache miss.
type Store interface {
	FindByKey(ctx context.Context, key string) (domain.EventAccess, bool, error)
}
