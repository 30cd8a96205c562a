package controldata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/ioserr"
	"github.com/integration-os/core/internal/storage"
)

// PostgresStore is the durable control-data read side: pipelines keyed by
// (source type, source events, source group) and connections keyed by id.
// Pipelines are authored externally; this store never writes one.
type PostgresStore struct {
	conn *storage.Connection
}

// NewPostgresStore wraps an open connection as a PipelineStore and
// ConnectionStore.
func NewPostgresStore(conn *storage.Connection) *PostgresStore {
	return &PostgresStore{conn: conn}
}

// FindBySource returns every pipeline whose source tuple matches. Source
// matching happens in Go after a coarse type+group filter at the SQL
// layer, since Source.Events is a JSON array and Postgres's native JSON
// containment operators vary by version in the pack's target deployments.
func (s *PostgresStore) FindBySource(ctx context.Context, eventType, eventName, group string) ([]domain.Pipeline, error) {
	const query = `
		SELECT id, environment, name, key, source, destination, middleware,
		       ownership, signature, config, created_at, updated_at
		FROM pipelines
		WHERE source->>'type' = $1 AND source->>'group' = $2`

	rows, err := s.conn.QueryContext(ctx, query, eventType, group)
	if err != nil {
		return nil, ioserr.Wrap(ioserr.Internal, "query pipelines", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []domain.Pipeline

	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, err
		}

		for _, name := range p.Source.Events {
			if name == eventName {
				matches = append(matches, p)

				break
			}
		}
	}

	if err := rows.Err(); err != nil {
		return nil, ioserr.Wrap(ioserr.Internal, "iterate pipelines", err)
	}

	return matches, nil
}

// FindByKey returns a single pipeline by its key.
func (s *PostgresStore) FindByKey(ctx context.Context, key string) (domain.Pipeline, bool, error) {
	const query = `
		SELECT id, environment, name, key, source, destination, middleware,
		       ownership, signature, config, created_at, updated_at
		FROM pipelines
		WHERE key = $1`

	row := s.conn.QueryRowContext(ctx, query, key)

	p, err := scanPipelineRow(row)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Pipeline{}, false, nil
	case err != nil:
		return domain.Pipeline{}, false, ioserr.Wrap(ioserr.Internal, "query pipeline by key", err)
	}

	return p, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPipeline(rows *sql.Rows) (domain.Pipeline, error) {
	return scanPipelineRow(rows)
}

func scanPipelineRow(row rowScanner) (domain.Pipeline, error) {
	var (
		p                                             domain.Pipeline
		sourceJSON, destJSON, middlewareJSON          []byte
		ownershipJSON, signatureJSON, configJSON      []byte
	)

	if err := row.Scan(
		&p.ID, &p.Environment, &p.Name, &p.Key, &sourceJSON, &destJSON, &middlewareJSON,
		&ownershipJSON, &signatureJSON, &configJSON, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return domain.Pipeline{}, err
	}

	if err := json.Unmarshal(sourceJSON, &p.Source); err != nil {
		return domain.Pipeline{}, ioserr.Wrap(ioserr.Internal, "decode pipeline source", err)
	}

	if err := json.Unmarshal(destJSON, &p.Destination); err != nil {
		return domain.Pipeline{}, ioserr.Wrap(ioserr.Internal, "decode pipeline destination", err)
	}

	if err := json.Unmarshal(middlewareJSON, &p.Middleware); err != nil {
		return domain.Pipeline{}, ioserr.Wrap(ioserr.Internal, "decode pipeline middleware", err)
	}

	if err := json.Unmarshal(ownershipJSON, &p.Ownership); err != nil {
		return domain.Pipeline{}, ioserr.Wrap(ioserr.Internal, "decode pipeline ownership", err)
	}

	if err := json.Unmarshal(signatureJSON, &p.Signature); err != nil {
		return domain.Pipeline{}, ioserr.Wrap(ioserr.Internal, "decode pipeline signature", err)
	}

	if len(configJSON) > 0 && string(configJSON) != "null" {
		p.Config = &domain.PipelineConfig{}
		if err := json.Unmarshal(configJSON, p.Config); err != nil {
			return domain.Pipeline{}, ioserr.Wrap(ioserr.Internal, "decode pipeline config", err)
		}
	}

	return p, nil
}

// FindByID returns a connection by its id.
func (s *PostgresStore) FindByID(ctx context.Context, id domain.Id) (domain.Connection, bool, error) {
	const query = `
		SELECT id, ownership, platform, deprecated, active, created_at, updated_at
		FROM connections
		WHERE id = $1`

	var (
		c             domain.Connection
		ownershipJSON []byte
	)

	row := s.conn.QueryRowContext(ctx, query, string(id))

	err := row.Scan(&c.ID, &ownershipJSON, &c.Platform, &c.Deprecated, &c.Active, &c.CreatedAt, &c.UpdatedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Connection{}, false, nil
	case err != nil:
		return domain.Connection{}, false, ioserr.Wrap(ioserr.Internal, "query connection", err)
	}

	if err := json.Unmarshal(ownershipJSON, &c.Ownership); err != nil {
		return domain.Connection{}, false, ioserr.Wrap(ioserr.Internal, "decode connection ownership", err)
	}

	return c, true, nil
}

// Update writes back a connection's mutable fields (deprecated/active).
// History is never erased: this is an UPDATE of lifecycle flags, not a
// new row, matching spec.md's "without removing history" requirement for
// Connection fields specifically (unlike the append-only context log).
func (s *PostgresStore) Update(ctx context.Context, conn domain.Connection) error {
	const query = `
		UPDATE connections
		SET deprecated = $2, active = $3, updated_at = now()
		WHERE id = $1`

	_, err := s.conn.ExecContext(ctx, query, string(conn.ID), conn.Deprecated, conn.Active)
	if err != nil {
		return ioserr.Wrap(ioserr.Internal, "update connection", err)
	}

	return nil
}
