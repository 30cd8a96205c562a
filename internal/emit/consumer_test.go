package emit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/integration-os/core/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConsumer(registry Registry, retry domain.RetryPolicy, store *MemoryStore) *Consumer {
	return NewConsumer(0, ConsumerConfig{
		Stream:   StreamConfig{Topic: "emit-events"},
		Retry:    retry,
		Registry: registry,
	}, store, store, discardLogger())
}

func TestConsumer_Process_SuccessCommitsOffset(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	registry := Registry{
		domain.EmitDatabaseConnectionLost: func(_ context.Context, _ []byte) error {
			calls++
			return nil
		},
	}

	c := newTestConsumer(registry, domain.RetryPolicy{MaximumAttempts: 3, InitialInterval: "0 seconds"}, store)

	event := domain.EmitEvent{Type: domain.EmitDatabaseConnectionLost, Payload: []byte(`{}`)}
	c.process(context.Background(), kafka.Message{Offset: 7}, event)

	require.Equal(t, 1, calls)
	require.Empty(t, store.DeadLetters())

	offset, found, err := store.LastOffset(context.Background(), "emit-events", 0)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 7, offset)
}

func TestConsumer_Process_RetryExhaustionDeadLettersAndCommits(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	registry := Registry{
		domain.EmitDatabaseConnectionLost: func(_ context.Context, _ []byte) error {
			calls++
			return errors.New("handler unavailable")
		},
	}

	c := newTestConsumer(registry, domain.RetryPolicy{MaximumAttempts: 3, InitialInterval: "0 seconds"}, store)

	event := domain.EmitEvent{Type: domain.EmitDatabaseConnectionLost, Payload: []byte(`{}`)}
	c.process(context.Background(), kafka.Message{Offset: 9}, event)

	require.Equal(t, 3, calls)

	letters := store.DeadLetters()
	require.Len(t, letters, 1)
	require.Equal(t, int64(9), letters[0].Offset)
	require.Equal(t, "handler unavailable", letters[0].Reason)

	offset, found, err := store.LastOffset(context.Background(), "emit-events", 0)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 9, offset)
}

func TestConsumer_Process_UnregisteredTypeDeadLettersWithoutConsumingRetry(t *testing.T) {
	store := NewMemoryStore()
	registry := Registry{}

	c := newTestConsumer(registry, domain.RetryPolicy{MaximumAttempts: 5, InitialInterval: "0 seconds"}, store)

	event := domain.EmitEvent{Type: domain.EmitEventType("Unknown"), Payload: []byte(`{}`)}
	c.process(context.Background(), kafka.Message{Offset: 3}, event)

	letters := store.DeadLetters()
	require.Len(t, letters, 1)
	require.Equal(t, "no handler registered for type: Unknown", letters[0].Reason)

	offset, found, err := store.LastOffset(context.Background(), "emit-events", 0)
	require.NoError(t, err)
	require.True(t, found)
	require.EqualValues(t, 3, offset)
}
