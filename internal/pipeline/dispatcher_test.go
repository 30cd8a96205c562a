package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/integration-os/core/internal/domain"
)

// fakeDoer implements HTTPDoer by delegating each call to a closure, so
// tests can script a sequence of responses/errors without a real server.
type fakeDoer struct {
	calls int32
	do    func(call int, req *http.Request) (*http.Response, error)
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	call := int(atomic.AddInt32(&f.calls, 1))

	return f.do(call, req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

// recordingStore implements ContextStore, keeping every appended context
// in order for assertions.
type recordingStore struct {
	pipelines  []domain.PipelineContext
	extractors []domain.ExtractorContext
}

func (s *recordingStore) AppendPipeline(_ context.Context, pc domain.PipelineContext) error {
	s.pipelines = append(s.pipelines, pc)

	return nil
}

func (s *recordingStore) AppendExtractor(_ context.Context, ec domain.ExtractorContext) error {
	s.extractors = append(s.extractors, ec)

	return nil
}

func (s *recordingStore) lastPipeline() domain.PipelineContext {
	return s.pipelines[len(s.pipelines)-1]
}

func basicPipeline(destURL string) domain.Pipeline {
	return domain.Pipeline{
		Key: "pipe_1",
		Destination: domain.Destination{
			Key:                 "dest",
			URL:                 destURL,
			Method:              "POST",
			Data:                "{{event.amount}}",
			StartToCloseTimeout: "1 second",
			Policies:            domain.Policies{Retry: domain.RetryPolicy{MaximumAttempts: 1, InitialInterval: "0 seconds"}},
		},
	}
}

func basicEvent() domain.Event {
	return domain.Event{Key: domain.NewId("evt"), Payload: []byte(`{"amount":4250}`)}
}

func TestDispatcher_Run_SucceedsThroughDestination(t *testing.T) {
	store := &recordingStore{}
	doer := &fakeDoer{do: func(_ int, _ *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"ok":true}`), nil
	}}

	d := NewDispatcher(store, doer, nil, slog.Default())

	status, err := d.Run(context.Background(), basicEvent(), basicPipeline("https://example.com/hook"))

	require.NoError(t, err)
	require.False(t, status.IsDropped())
	require.Equal(t, domain.PipelineStageCompleted, store.lastPipeline().Stage)
}

func TestDispatcher_Run_ExtractorExhaustsRetriesAndDrops(t *testing.T) {
	store := &recordingStore{}
	doer := &fakeDoer{do: func(_ int, _ *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, "boom"), nil
	}}

	pl := basicPipeline("https://example.com/hook")
	pl.Middleware = []domain.Middleware{
		{
			Type: domain.MiddlewareHTTPExtractor,
			HTTPExtractor: &domain.HttpExtractor{
				Key:                 "charge_lookup",
				URL:                 "https://example.com/charge",
				Method:              "GET",
				StartToCloseTimeout: "1 second",
				Policies: domain.Policies{
					Retry: domain.RetryPolicy{MaximumAttempts: 3, InitialInterval: "0 seconds"},
				},
			},
		},
	}

	d := NewDispatcher(store, doer, nil, slog.Default())

	status, err := d.Run(context.Background(), basicEvent(), pl)

	require.NoError(t, err)
	require.True(t, status.IsDropped())
	require.Equal(t, "extractor: charge_lookup", status.Reason)
	require.EqualValues(t, 3, doer.calls)
}

func TestDispatcher_Run_TemplateFailureDropsTerminal(t *testing.T) {
	store := &recordingStore{}
	doer := &fakeDoer{do: func(_ int, _ *http.Request) (*http.Response, error) {
		t.Fatal("destination must not be called when the template cannot resolve")

		return nil, nil
	}}

	pl := basicPipeline("https://example.com/hook")
	pl.Destination.Data = "{{event.missing_field}}"

	d := NewDispatcher(store, doer, nil, slog.Default())

	status, err := d.Run(context.Background(), basicEvent(), pl)

	require.NoError(t, err)
	require.True(t, status.IsDropped())
	require.Equal(t, "destination: template: event.missing_field", status.Reason)
}

func TestDispatcher_Run_NonRetriableClientErrorStopsImmediately(t *testing.T) {
	store := &recordingStore{}
	doer := &fakeDoer{do: func(_ int, _ *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, "nope"), nil
	}}

	pl := basicPipeline("https://example.com/hook")
	pl.Destination.Policies.Retry = domain.RetryPolicy{MaximumAttempts: 5, InitialInterval: "0 seconds"}

	d := NewDispatcher(store, doer, nil, slog.Default())

	status, err := d.Run(context.Background(), basicEvent(), pl)

	require.NoError(t, err)
	require.True(t, status.IsDropped())
	require.EqualValues(t, 1, doer.calls)
}
