package watchdog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/integration-os/core/internal/contextstore"
	"github.com/integration-os/core/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatchdog_Sweep_DropsPipelineStuckInStageNew(t *testing.T) {
	store := contextstore.NewMemoryStore()
	eventKey := domain.NewId("evt")

	stuck := domain.NewExtractorContext("charge_lookup", "pipe_1", eventKey)
	stuck.Timestamp = time.Now().Add(-time.Hour)
	require.NoError(t, store.AppendExtractor(context.Background(), stuck))

	w := New(store, Config{PollDuration: time.Second, EventTimeout: 5 * time.Minute}, discardLogger())

	require.NoError(t, w.Sweep(context.Background()))

	pc, found, err := store.LatestPipeline(context.Background(), eventKey, "pipe_1")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, pc.Status.IsDropped())
	require.Equal(t, "timeout", pc.Status.Reason)
}

func TestWatchdog_Sweep_IgnoresFreshExtractors(t *testing.T) {
	store := contextstore.NewMemoryStore()
	eventKey := domain.NewId("evt")

	fresh := domain.NewExtractorContext("charge_lookup", "pipe_1", eventKey)
	require.NoError(t, store.AppendExtractor(context.Background(), fresh))

	w := New(store, Config{PollDuration: time.Second, EventTimeout: 5 * time.Minute}, discardLogger())

	require.NoError(t, w.Sweep(context.Background()))

	_, found, err := store.LatestPipeline(context.Background(), eventKey, "pipe_1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestWatchdog_Sweep_IgnoresAlreadyCompletePipeline(t *testing.T) {
	store := contextstore.NewMemoryStore()
	eventKey := domain.NewId("evt")

	stuck := domain.NewExtractorContext("charge_lookup", "pipe_1", eventKey)
	stuck.Timestamp = time.Now().Add(-time.Hour)
	require.NoError(t, store.AppendExtractor(context.Background(), stuck))

	completed := domain.NewPipelineContext("pipe_1", eventKey)
	completed.Stage = domain.PipelineStageCompleted
	require.NoError(t, store.AppendPipeline(context.Background(), completed))

	w := New(store, Config{PollDuration: time.Second, EventTimeout: 5 * time.Minute}, discardLogger())

	require.NoError(t, w.Sweep(context.Background()))

	pc, found, err := store.LatestPipeline(context.Background(), eventKey, "pipe_1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, domain.PipelineStageCompleted, pc.Stage)
	require.False(t, pc.Status.IsDropped())
}

func TestWatchdog_Sweep_DropsRootOnceItsOnlyChildDrops(t *testing.T) {
	store := contextstore.NewMemoryStore()
	eventKey := domain.NewId("evt")

	root := domain.NewRootContext(eventKey)
	root.Children = []string{"pipe_1"}
	require.NoError(t, store.AppendRoot(context.Background(), root))

	stuck := domain.NewExtractorContext("charge_lookup", "pipe_1", eventKey)
	stuck.Timestamp = time.Now().Add(-time.Hour)
	require.NoError(t, store.AppendExtractor(context.Background(), stuck))

	w := New(store, Config{PollDuration: time.Second, EventTimeout: 5 * time.Minute}, discardLogger())

	require.NoError(t, w.Sweep(context.Background()))

	gotRoot, found, err := store.LatestRoot(context.Background(), eventKey)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, gotRoot.Status.IsDropped())
}
