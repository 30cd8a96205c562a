package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/integration-os/core/internal/ioserr"
)

func TestRetryPolicy_GetInterval(t *testing.T) {
	cases := []struct {
		name     string
		interval string
		want     time.Duration
	}{
		{"singular second", "1 second", time.Second},
		{"plural seconds", "30 seconds", 30 * time.Second},
		{"singular minute", "1 minute", time.Minute},
		{"plural minutes", "5 minutes", 5 * time.Minute},
		{"zero seconds", "0 seconds", 0},
		{"zero minutes", "0 minutes", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RetryPolicy{InitialInterval: tc.interval}.GetInterval()
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRetryPolicy_GetIntervalRejectsBadGrammar(t *testing.T) {
	cases := []string{"", "five seconds", "5", "5 fortnights", " "}

	for _, interval := range cases {
		_, err := RetryPolicy{InitialInterval: interval}.GetInterval()
		require.True(t, ioserr.As(err, ioserr.ConfigurationErr), "interval %q should be rejected", interval)
	}
}

func TestSource_Matches(t *testing.T) {
	s := Source{Type: "stripe", Events: []string{"charge.created", "charge.failed"}, Group: "default"}

	require.True(t, s.Matches("stripe", "charge.created", "default"))
	require.False(t, s.Matches("stripe", "charge.created", "other"))
	require.False(t, s.Matches("shopify", "charge.created", "default"))
	require.False(t, s.Matches("stripe", "charge.refunded", "default"))
}

func TestNormalizeMethod(t *testing.T) {
	require.Equal(t, "GET", NormalizeMethod(""))
	require.Equal(t, "POST", NormalizeMethod("post"))
	require.Equal(t, "PUT", NormalizeMethod("PUT"))
}
