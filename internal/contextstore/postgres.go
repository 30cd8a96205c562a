package contextstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/ioserr"
	"github.com/integration-os/core/internal/storage"
)

// contextType discriminates the three context variants sharing one
// append-only table, per SPEC_FULL.md's "downcastable context" note: a
// tagged sum with a discriminator column instead of heterogeneous Rust
// trait objects.
type contextType string

const (
	typeRoot      contextType = "root"
	typePipeline  contextType = "pipeline"
	typeExtractor contextType = "extractor"
)

// PostgresStore is the durable, append-only context log. Every append is
// an INSERT; nothing is ever UPDATEd or DELETEd.
type PostgresStore struct {
	conn *storage.Connection
}

// NewPostgresStore wraps an open connection as a Store.
func NewPostgresStore(conn *storage.Connection) *PostgresStore {
	return &PostgresStore{conn: conn}
}

// AppendRoot inserts an immutable RootContext row.
func (s *PostgresStore) AppendRoot(ctx context.Context, rc domain.RootContext) error {
	payload, err := json.Marshal(rc)
	if err != nil {
		return ioserr.Wrap(ioserr.Internal, "encode root context", err)
	}

	const query = `
		INSERT INTO contexts (type, event_key, pipeline_key, extractor_key, payload, created_at)
		VALUES ($1, $2, '', '', $3, $4)`

	_, err = s.conn.ExecContext(ctx, query, typeRoot, string(rc.EventKey), payload, rc.Timestamp)
	if err != nil {
		return ioserr.Wrap(ioserr.Internal, "append root context", err)
	}

	return nil
}

// AppendPipeline inserts an immutable PipelineContext row.
func (s *PostgresStore) AppendPipeline(ctx context.Context, pc domain.PipelineContext) error {
	payload, err := json.Marshal(pc)
	if err != nil {
		return ioserr.Wrap(ioserr.Internal, "encode pipeline context", err)
	}

	const query = `
		INSERT INTO contexts (type, event_key, pipeline_key, extractor_key, payload, created_at)
		VALUES ($1, $2, $3, '', $4, $5)`

	_, err = s.conn.ExecContext(ctx, query, typePipeline, string(pc.EventKey), pc.PipelineKey, payload, pc.Timestamp)
	if err != nil {
		return ioserr.Wrap(ioserr.Internal, "append pipeline context", err)
	}

	return nil
}

// AppendExtractor inserts an immutable ExtractorContext row.
func (s *PostgresStore) AppendExtractor(ctx context.Context, ec domain.ExtractorContext) error {
	payload, err := json.Marshal(ec)
	if err != nil {
		return ioserr.Wrap(ioserr.Internal, "encode extractor context", err)
	}

	const query = `
		INSERT INTO contexts (type, event_key, pipeline_key, extractor_key, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = s.conn.ExecContext(
		ctx, query, typeExtractor, string(ec.EventKey), ec.PipelineKey, ec.ExtractorKey, payload, ec.Timestamp,
	)
	if err != nil {
		return ioserr.Wrap(ioserr.Internal, "append extractor context", err)
	}

	return nil
}

// LatestRoot returns the most recent root snapshot for eventKey.
func (s *PostgresStore) LatestRoot(ctx context.Context, eventKey domain.Id) (domain.RootContext, bool, error) {
	const query = `
		SELECT payload FROM contexts
		WHERE type = $1 AND event_key = $2
		ORDER BY id DESC LIMIT 1`

	var payload []byte

	err := s.conn.QueryRowContext(ctx, query, typeRoot, string(eventKey)).Scan(&payload)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.RootContext{}, false, nil
	case err != nil:
		return domain.RootContext{}, false, ioserr.Wrap(ioserr.Internal, "query latest root context", err)
	}

	var rc domain.RootContext
	if err := json.Unmarshal(payload, &rc); err != nil {
		return domain.RootContext{}, false, ioserr.Wrap(ioserr.Internal, "decode root context", err)
	}

	return rc, true, nil
}

// LatestPipeline returns the most recent pipeline context for (eventKey,
// pipelineKey).
func (s *PostgresStore) LatestPipeline(
	ctx context.Context,
	eventKey domain.Id,
	pipelineKey string,
) (domain.PipelineContext, bool, error) {
	const query = `
		SELECT payload FROM contexts
		WHERE type = $1 AND event_key = $2 AND pipeline_key = $3
		ORDER BY id DESC LIMIT 1`

	var payload []byte

	err := s.conn.QueryRowContext(ctx, query, typePipeline, string(eventKey), pipelineKey).Scan(&payload)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.PipelineContext{}, false, nil
	case err != nil:
		return domain.PipelineContext{}, false, ioserr.Wrap(ioserr.Internal, "query latest pipeline context", err)
	}

	var pc domain.PipelineContext
	if err := json.Unmarshal(payload, &pc); err != nil {
		return domain.PipelineContext{}, false, ioserr.Wrap(ioserr.Internal, "decode pipeline context", err)
	}

	return pc, true, nil
}

// ChainExtractors returns every extractor context appended for (eventKey,
// pipelineKey), oldest first, for audit use off the hot path.
func (s *PostgresStore) ChainExtractors(
	ctx context.Context,
	eventKey domain.Id,
	pipelineKey string,
) ([]domain.ExtractorContext, error) {
	const query = `
		SELECT payload FROM contexts
		WHERE type = $1 AND event_key = $2 AND pipeline_key = $3
		ORDER BY id ASC`

	rows, err := s.conn.QueryContext(ctx, query, typeExtractor, string(eventKey), pipelineKey)
	if err != nil {
		return nil, ioserr.Wrap(ioserr.Internal, "query extractor chain", err)
	}
	defer func() { _ = rows.Close() }()

	var chain []domain.ExtractorContext

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, ioserr.Wrap(ioserr.Internal, "scan extractor context", err)
		}

		var ec domain.ExtractorContext
		if err := json.Unmarshal(payload, &ec); err != nil {
			return nil, ioserr.Wrap(ioserr.Internal, "decode extractor context", err)
		}

		chain = append(chain, ec)
	}

	if err := rows.Err(); err != nil {
		return nil, ioserr.Wrap(ioserr.Internal, "iterate extractor chain", err)
	}

	return chain, nil
}

// StaleExtractors returns the latest context per (event, pipeline,
// extractor) chain that is still in stage New and older than olderThan,
// for the watchdog's orphan sweep (spec.md §4.5, §9).
func (s *PostgresStore) StaleExtractors(ctx context.Context, olderThan time.Time) ([]domain.ExtractorContext, error) {
	const query = `
		SELECT DISTINCT ON (event_key, pipeline_key, extractor_key) payload
		FROM contexts
		WHERE type = $1
		ORDER BY event_key, pipeline_key, extractor_key, id DESC`

	rows, err := s.conn.QueryContext(ctx, query, typeExtractor)
	if err != nil {
		return nil, ioserr.Wrap(ioserr.Internal, "query extractor contexts", err)
	}
	defer func() { _ = rows.Close() }()

	var stale []domain.ExtractorContext

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, ioserr.Wrap(ioserr.Internal, "scan extractor context", err)
		}

		var ec domain.ExtractorContext
		if err := json.Unmarshal(payload, &ec); err != nil {
			return nil, ioserr.Wrap(ioserr.Internal, "decode extractor context", err)
		}

		if ec.Stage.Name == domain.StageNew && ec.Timestamp.Before(olderThan) {
			stale = append(stale, ec)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, ioserr.Wrap(ioserr.Internal, "iterate extractor contexts", err)
	}

	return stale, nil
}
