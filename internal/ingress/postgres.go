package ingress

import (
	"context"
	"encoding/json"

	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/ioserr"
	"github.com/integration-os/core/internal/storage"
)

// PostgresStore is the durable EventStore.
type PostgresStore struct {
	conn *storage.Connection
}

// NewPostgresStore wraps an open connection.
func NewPostgresStore(conn *storage.Connection) *PostgresStore {
	return &PostgresStore{conn: conn}
}

// Insert writes the immutable event record. Events are never updated
// after insert, so there is no upsert path to consider.
func (s *PostgresStore) Insert(ctx context.Context, event domain.Event) error {
	hashes, err := json.Marshal(event.Hashes)
	if err != nil {
		return ioserr.Wrap(ioserr.Internal, "encode event hashes", err)
	}

	const query = `
		INSERT INTO events (key, access_key_ref, name, payload, hashes, payload_byte_length, environment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.conn.ExecContext(ctx, query,
		event.Key, event.AccessKeyRef, event.Name, event.Payload, hashes,
		event.PayloadByteLength, event.Environment, event.CreatedAt,
	)
	if err != nil {
		return ioserr.Wrap(ioserr.Internal, "insert event", err)
	}

	return nil
}
