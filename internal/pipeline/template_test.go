package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/integration-os/core/internal/ioserr"
)

func TestResolve_SubstitutesNestedPaths(t *testing.T) {
	values := Values{
		"event": map[string]any{"amount": 4250.0, "currency": "usd"},
		"charge_lookup": json.RawMessage(`{"id":"ch_123","paid":true}`),
	}

	got, err := Resolve("id={{charge_lookup.id}} amount={{event.amount}} paid={{charge_lookup.paid}}", values)

	require.NoError(t, err)
	require.Equal(t, "id=ch_123 amount=4250 paid=true", got)
}

func TestResolve_NoPlaceholdersIsPassthrough(t *testing.T) {
	got, err := Resolve("https://example.com/hooks", Values{})

	require.NoError(t, err)
	require.Equal(t, "https://example.com/hooks", got)
}

func TestResolve_UnresolvedPathIsBadRequest(t *testing.T) {
	_, err := Resolve("{{charge_lookup.id}}", Values{"event": map[string]any{}})

	require.True(t, ioserr.As(err, ioserr.BadRequest))
}

func TestResolve_UnresolvedPathOnNonObjectIsBadRequest(t *testing.T) {
	values := Values{"event": map[string]any{"amount": 4250.0}}

	_, err := Resolve("{{event.amount.sub}}", values)

	require.True(t, ioserr.As(err, ioserr.BadRequest))
}
