package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRateLimiter_AllowsUpToBurst(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{RPS: 10, Burst: 3})

	allowed := 0

	for i := 0; i < 5; i++ {
		if rl.Allow() {
			allowed++
		}
	}

	assert.Equal(t, 3, allowed)
}

func TestRateLimit_RejectsWithTooManyRequests(t *testing.T) {
	rl := NewInMemoryRateLimiter(&Config{RPS: 1, Burst: 1})

	handler := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/event", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/event", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, second.Body.String())
}
