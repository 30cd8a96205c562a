package credential

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/ioserr"
)

func newTestGate(t *testing.T, rawKey string, throughput uint64) (*Gate, *MemoryStore) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.MinCost)
	require.NoError(t, err)

	store := NewMemoryStore()
	store.Put(rawKey, domain.EventAccess{
		ID:         domain.NewId("ea"),
		Key:        rawKey,
		Type:       "stripe",
		Group:      "default",
		AccessKey:  string(hash),
		Throughput: throughput,
	})

	cache := NewCache(16, time.Minute, store)

	return NewGate(cache), store
}

func TestGate_AdmitSucceeds(t *testing.T) {
	rawKey := "ik_live_" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	gate, _ := newTestGate(t, rawKey, 10)

	access, err := gate.Admit(context.Background(), rawKey, "stripe")

	require.NoError(t, err)
	require.Equal(t, "stripe", access.Type)
}

func TestGate_AdmitRejectsUnknownKey(t *testing.T) {
	rawKey := "ik_live_" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	gate, _ := newTestGate(t, rawKey, 10)

	other := "ik_live_" + "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"

	_, err := gate.Admit(context.Background(), other, "stripe")

	require.True(t, ioserr.As(err, ioserr.Unauthorized))
}

func TestGate_AdmitRejectsDisallowedType(t *testing.T) {
	rawKey := "ik_live_" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	gate, _ := newTestGate(t, rawKey, 10)

	_, err := gate.Admit(context.Background(), rawKey, "shopify")

	require.True(t, ioserr.As(err, ioserr.Forbidden))
}

func TestGate_AdmitEnforcesThroughput(t *testing.T) {
	rawKey := "ik_live_" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	gate, _ := newTestGate(t, rawKey, 1)

	_, err := gate.Admit(context.Background(), rawKey, "stripe")
	require.NoError(t, err)

	_, err = gate.Admit(context.Background(), rawKey, "stripe")
	require.True(t, ioserr.As(err, ioserr.TooManyRequests))
}
