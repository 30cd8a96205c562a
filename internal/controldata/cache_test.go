package controldata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/integration-os/core/internal/domain"
)

func TestCachedPipelineStore_FindBySourceFillsCacheOnMiss(t *testing.T) {
	inner := NewMemoryStore()
	inner.PutPipeline(domain.Pipeline{
		Key:    "pipe_stripe",
		Source: domain.Source{Type: "webhook", Events: []string{"charge.succeeded"}, Group: "acme"},
	})

	cache := NewCachedPipelineStore(16, time.Minute, inner)

	first, err := cache.FindBySource(context.Background(), "webhook", "charge.succeeded", "acme")
	require.NoError(t, err)
	require.Len(t, first, 1)

	inner.PutPipeline(domain.Pipeline{
		Key:    "pipe_added_after_cache_fill",
		Source: domain.Source{Type: "webhook", Events: []string{"charge.succeeded"}, Group: "acme"},
	})

	second, err := cache.FindBySource(context.Background(), "webhook", "charge.succeeded", "acme")
	require.NoError(t, err)
	require.Len(t, second, 1, "a cache hit must not see writes to inner that happened after the fill")
}

func TestCachedPipelineStore_FindByKeyBypassesCache(t *testing.T) {
	inner := NewMemoryStore()
	inner.PutPipeline(domain.Pipeline{Key: "pipe_1"})

	cache := NewCachedPipelineStore(16, time.Minute, inner)

	_, found, err := cache.FindByKey(context.Background(), "pipe_1")
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = cache.FindByKey(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, found)
}
