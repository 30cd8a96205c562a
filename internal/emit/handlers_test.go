package emit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/integration-os/core/internal/controldata"
	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/ioserr"
)

func TestRegistry_DatabaseConnectionLostMarksConnectionDeprecated(t *testing.T) {
	connections := controldata.NewMemoryStore()
	conn := domain.Connection{ID: domain.NewId("conn"), Platform: "stripe", Active: true}
	connections.PutConnection(conn)

	registry := NewRegistry(connections)

	handler, ok := registry.Lookup(domain.EmitDatabaseConnectionLost)
	require.True(t, ok)

	payload, err := json.Marshal(domain.DatabaseConnectionLost{ConnectionID: string(conn.ID), Reason: "timeout"})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), payload))

	updated, found, err := connections.FindByID(context.Background(), conn.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, updated.Deprecated)
	require.False(t, updated.Active)
}

func TestRegistry_DatabaseConnectionLostUnknownConnectionIsNotFound(t *testing.T) {
	connections := controldata.NewMemoryStore()
	registry := NewRegistry(connections)

	handler, ok := registry.Lookup(domain.EmitDatabaseConnectionLost)
	require.True(t, ok)

	payload, err := json.Marshal(domain.DatabaseConnectionLost{ConnectionID: "missing"})
	require.NoError(t, err)

	err = handler(context.Background(), payload)
	require.True(t, ioserr.As(err, ioserr.NotFound))
}

func TestRegistry_LookupMissesUnregisteredType(t *testing.T) {
	registry := NewRegistry(controldata.NewMemoryStore())

	_, ok := registry.Lookup(domain.EmitEventType("SomethingElse"))
	require.False(t, ok)
}
