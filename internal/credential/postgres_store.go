package credential

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/ioserr"
	"github.com/integration-os/core/internal/storage"
)

// PostgresStore is the durable EventAccess read side, keyed by the
// SHA-256 lookup hash of the raw access key for O(1) retrieval.
type PostgresStore struct {
	conn *storage.Connection
}

// NewPostgresStore wraps an open connection as an EventAccess Store.
func NewPostgresStore(conn *storage.Connection) *PostgresStore {
	return &PostgresStore{conn: conn}
}

// FindByKey looks up an EventAccess by its key lookup hash. The returned
// record's AccessKey field holds the bcrypt hash used for verification,
// never the plaintext key.
func (s *PostgresStore) FindByKey(ctx context.Context, lookupHash string) (domain.EventAccess, bool, error) {
	const query = `
		SELECT id, name, key, namespace, platform, type, "group", ownership,
		       access_key, throughput, environment, created_at, updated_at
		FROM event_access
		WHERE key_lookup_hash = $1`

	var (
		access        domain.EventAccess
		ownershipJSON []byte
	)

	row := s.conn.QueryRowContext(ctx, query, lookupHash)

	err := row.Scan(
		&access.ID, &access.Name, &access.Key, &access.Namespace, &access.Platform,
		&access.Type, &access.Group, &ownershipJSON, &access.AccessKey, &access.Throughput,
		&access.Environment, &access.CreatedAt, &access.UpdatedAt,
	)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.EventAccess{}, false, nil
	case err != nil:
		return domain.EventAccess{}, false, ioserr.Wrap(ioserr.Internal, "query event_access", err)
	}

	if err := json.Unmarshal(ownershipJSON, &access.Ownership); err != nil {
		return domain.EventAccess{}, false, ioserr.Wrap(ioserr.Internal, "decode ownership", err)
	}

	return access, true, nil
}
