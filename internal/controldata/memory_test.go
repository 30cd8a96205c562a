package controldata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/integration-os/core/internal/domain"
)

func TestMemoryStore_FindBySourceMatchesTypeNameAndGroup(t *testing.T) {
	store := NewMemoryStore()

	store.PutPipeline(domain.Pipeline{
		Key:    "pipe_stripe",
		Source: domain.Source{Type: "webhook", Events: []string{"charge.succeeded"}, Group: "acme"},
	})
	store.PutPipeline(domain.Pipeline{
		Key:    "pipe_other_group",
		Source: domain.Source{Type: "webhook", Events: []string{"charge.succeeded"}, Group: "other"},
	})
	store.PutPipeline(domain.Pipeline{
		Key:    "pipe_other_event",
		Source: domain.Source{Type: "webhook", Events: []string{"charge.failed"}, Group: "acme"},
	})

	matches, err := store.FindBySource(context.Background(), "webhook", "charge.succeeded", "acme")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "pipe_stripe", matches[0].Key)
}

func TestMemoryStore_FindByKeyMissingIsNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, found, err := store.FindByKey(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryStore_UpdateConnectionPersistsMarkLost(t *testing.T) {
	store := NewMemoryStore()
	conn := domain.Connection{ID: domain.NewId("conn"), Platform: "stripe", Active: true}
	store.PutConnection(conn)

	conn.MarkLost()
	require.NoError(t, store.Update(context.Background(), conn))

	got, found, err := store.FindByID(context.Background(), conn.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, got.Deprecated)
	require.False(t, got.Active)
}
