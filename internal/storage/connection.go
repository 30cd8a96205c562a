// Package storage provides PostgreSQL connection management shared by the
// credential, context store, control-data, and emit packages.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	postgresDriver = "postgres"
	ctxTimeout     = 5 * time.Second
)

// Connection wraps a pooled PostgreSQL connection.
type Connection struct {
	*sql.DB
}

// NewConnection opens a pooled connection and verifies it with an immediate health check.
func NewConnection(config *Config) (*Connection, error) {
	db, err := sql.Open(postgresDriver, config.databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), ctxTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	return &Connection{db}, nil
}

// HealthCheck pings the database with a bounded timeout.
func (c *Connection) HealthCheck(ctx context.Context) error { //nolint: contextcheck
	if ctx == nil {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(context.Background(), ctxTimeout)

		defer cancel()
	}

	return c.PingContext(ctx)
}

// Close closes the underlying connection pool. Safe to call multiple times.
func (c *Connection) Close() error {
	return c.DB.Close()
}
