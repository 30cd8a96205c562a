package contextstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/integration-os/core/internal/domain"
)

func TestMemoryStore_LatestRootReturnsMostRecentAppend(t *testing.T) {
	store := NewMemoryStore()
	eventKey := domain.NewId("evt")

	first := domain.NewRootContext(eventKey)
	require.NoError(t, store.AppendRoot(context.Background(), first))

	second := first
	second.Status = domain.StatusDropped("timeout")
	require.NoError(t, store.AppendRoot(context.Background(), second))

	got, found, err := store.LatestRoot(context.Background(), eventKey)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, got.Status.IsDropped())
}

func TestMemoryStore_LatestRootMissingIsNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, found, err := store.LatestRoot(context.Background(), domain.NewId("evt"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestMemoryStore_LatestPipelineScopesByEventAndPipelineKey(t *testing.T) {
	store := NewMemoryStore()
	eventA := domain.NewId("evt")
	eventB := domain.NewId("evt")

	require.NoError(t, store.AppendPipeline(context.Background(), domain.NewPipelineContext("pipe_1", eventA)))

	runningB := domain.NewPipelineContext("pipe_1", eventB)
	runningB.Stage = domain.PipelineStageRunningExtractor
	require.NoError(t, store.AppendPipeline(context.Background(), runningB))

	completedA := domain.NewPipelineContext("pipe_1", eventA)
	completedA.Stage = domain.PipelineStageCompleted
	require.NoError(t, store.AppendPipeline(context.Background(), completedA))

	got, found, err := store.LatestPipeline(context.Background(), eventA, "pipe_1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, domain.PipelineStageCompleted, got.Stage)

	gotB, found, err := store.LatestPipeline(context.Background(), eventB, "pipe_1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, domain.PipelineStageRunningExtractor, gotB.Stage)
}

func TestMemoryStore_ChainExtractorsReturnsOldestFirstForOneChain(t *testing.T) {
	store := NewMemoryStore()
	eventKey := domain.NewId("evt")

	first := domain.NewExtractorContext("charge_lookup", "pipe_1", eventKey)
	require.NoError(t, store.AppendExtractor(context.Background(), first))

	finished := first
	finished.Stage = domain.FinishedExtractorStage([]byte(`{"ok":true}`))
	require.NoError(t, store.AppendExtractor(context.Background(), finished))

	other := domain.NewExtractorContext("other_lookup", "pipe_1", eventKey)
	require.NoError(t, store.AppendExtractor(context.Background(), other))

	chain, err := store.ChainExtractors(context.Background(), eventKey, "pipe_1")
	require.NoError(t, err)
	require.Len(t, chain, 3)
	require.False(t, chain[0].IsFinished())
	require.True(t, chain[1].IsFinished())
	require.Equal(t, "other_lookup", chain[2].ExtractorKey)
}

func TestMemoryStore_StaleExtractorsOnlyConsidersLatestPerChain(t *testing.T) {
	store := NewMemoryStore()
	eventKey := domain.NewId("evt")
	cutoff := time.Now().UTC()

	stuck := domain.NewExtractorContext("charge_lookup", "pipe_1", eventKey)
	stuck.Timestamp = cutoff.Add(-time.Hour)
	require.NoError(t, store.AppendExtractor(context.Background(), stuck))

	recovered := domain.NewExtractorContext("recovered_lookup", "pipe_1", eventKey)
	recovered.Timestamp = cutoff.Add(-time.Hour)
	require.NoError(t, store.AppendExtractor(context.Background(), recovered))

	finished := recovered
	finished.Stage = domain.FinishedExtractorStage([]byte(`{"ok":true}`))
	finished.Timestamp = cutoff.Add(-time.Minute)
	require.NoError(t, store.AppendExtractor(context.Background(), finished))

	fresh := domain.NewExtractorContext("fresh_lookup", "pipe_1", eventKey)
	fresh.Timestamp = cutoff.Add(time.Hour)
	require.NoError(t, store.AppendExtractor(context.Background(), fresh))

	stale, err := store.StaleExtractors(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, "charge_lookup", stale[0].ExtractorKey)
}
