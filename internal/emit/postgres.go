package emit

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/ioserr"
	"github.com/integration-os/core/internal/storage"
)

const pqUniqueViolation = "23505"

// PostgresStore is the durable IdempotencyStore, DeadLetterStore, and
// OffsetStore, all three backed by the same connection pool the context
// store and control-data read side share.
type PostgresStore struct {
	conn *storage.Connection
}

// NewPostgresStore wraps an open connection.
func NewPostgresStore(conn *storage.Connection) *PostgresStore {
	return &PostgresStore{conn: conn}
}

// Insert attempts to claim idem.Key as the unique primary key of the
// idempotency table. A unique-violation is not an error from the caller's
// perspective -- it is the Duplicate signal spec.md §4.3 requires.
func (s *PostgresStore) Insert(ctx context.Context, idem domain.Idempotency) (bool, error) {
	const query = `
		INSERT INTO idempotency (key, indexable, created_at)
		VALUES ($1, $2, $3)`

	_, err := s.conn.ExecContext(ctx, query, idem.Key, string(idem.Indexable), idem.CreatedAt)
	if err == nil {
		return true, nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return false, nil
	}

	return false, ioserr.Wrap(ioserr.Internal, "insert idempotency key", err)
}

// Append records a dead-lettered record keyed by partition+offset.
func (s *PostgresStore) Append(ctx context.Context, dl domain.DeadLetter) error {
	const query = `
		INSERT INTO dead_letters (partition, "offset", type, payload, reason, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (partition, "offset") DO NOTHING`

	_, err := s.conn.ExecContext(ctx, query, dl.Partition, dl.Offset, dl.Type, []byte(dl.Payload), dl.Reason, dl.FailedAt)
	if err != nil {
		return ioserr.Wrap(ioserr.Internal, "append dead letter", err)
	}

	return nil
}

// CommitOffset upserts the last processed offset for (topic, partition).
func (s *PostgresStore) CommitOffset(ctx context.Context, topic string, partition int32, offset int64) error {
	const query = `
		INSERT INTO partition_offsets (topic, partition, "offset")
		VALUES ($1, $2, $3)
		ON CONFLICT (topic, partition) DO UPDATE SET "offset" = EXCLUDED."offset"`

	_, err := s.conn.ExecContext(ctx, query, topic, partition, offset)
	if err != nil {
		return ioserr.Wrap(ioserr.Internal, "commit partition offset", err)
	}

	return nil
}

// LastOffset returns the last committed offset for (topic, partition).
func (s *PostgresStore) LastOffset(ctx context.Context, topic string, partition int32) (int64, bool, error) {
	const query = `
		SELECT "offset" FROM partition_offsets
		WHERE topic = $1 AND partition = $2`

	var offset int64

	err := s.conn.QueryRowContext(ctx, query, topic, partition).Scan(&offset)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, ioserr.Wrap(ioserr.Internal, "query partition offset", err)
	}

	return offset, true, nil
}
