package emit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/integration-os/core/internal/controldata"
	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/ioserr"
)

// Handler processes one EmitEvent's payload. Handlers must be idempotent;
// a partition consumer may redeliver the same offset after a crash.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Registry is an open map from EmitEventType to Handler. Adding a new
// lifecycle event variant means registering a handler here, not touching
// the stream, idempotency, or dead-letter machinery (SPEC_FULL.md §12).
type Registry map[domain.EmitEventType]Handler

// NewRegistry returns the registry the source ships: a single handler for
// DatabaseConnectionLost. Callers may add entries before passing the
// registry to NewConsumer.
func NewRegistry(connections controldata.ConnectionStore) Registry {
	return Registry{
		domain.EmitDatabaseConnectionLost: databaseConnectionLostHandler(connections),
	}
}

// Lookup returns the handler registered for typ, if any. The consumer
// calls this per record rather than requiring callers to flatten the
// registry into a single Handler, so an unregistered type is visible as
// its own failure mode distinct from a handler's own error.
func (r Registry) Lookup(typ domain.EmitEventType) (Handler, bool) {
	handler, ok := r[typ]

	return handler, ok
}

// databaseConnectionLostHandler marks the affected connection deprecated
// and inactive without erasing its history, per spec.md §4.3. Re-applying
// it to an already-deprecated connection is a no-op update, so redelivery
// is safe.
func databaseConnectionLostHandler(connections controldata.ConnectionStore) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var body domain.DatabaseConnectionLost
		if err := json.Unmarshal(payload, &body); err != nil {
			return ioserr.Wrap(ioserr.BadRequest, "decode DatabaseConnectionLost payload", err)
		}

		conn, found, err := connections.FindByID(ctx, domain.Id(body.ConnectionID))
		if err != nil {
			return err
		}

		if !found {
			return ioserr.New(ioserr.NotFound, fmt.Sprintf("connection %s not found", body.ConnectionID))
		}

		conn.MarkLost()

		return connections.Update(ctx, conn)
	}
}
