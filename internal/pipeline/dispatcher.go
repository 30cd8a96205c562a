package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/ioserr"
)

// ContextStore is the append-only log the dispatcher writes every state
// transition to. Durability of each append must complete before the
// dispatcher moves to the next state: a crash between an HTTP call and its
// context append is what the watchdog later detects and drops.
type ContextStore interface {
	AppendPipeline(ctx context.Context, pc domain.PipelineContext) error
	AppendExtractor(ctx context.Context, ec domain.ExtractorContext) error
}

// HTTPDoer is the minimal surface the dispatcher needs from an HTTP
// client, satisfied by *http.Client and easily faked in tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransformFunc evaluates a Middleware.Transformer step. The dispatcher
// treats language and code as opaque and only observes the in/out value
// maps; a nil TransformFunc makes every transformer step an identity
// pass-through, which is the safe default when no evaluator is wired in.
type TransformFunc func(ctx context.Context, language, code string, in Values) (Values, error)

// Dispatcher is the pure state-machine reducer that walks one pipeline
// through its extractors and destination for a single event. It owns no
// shared mutable state beyond its dependencies; everything about a run
// lives in the context chain written to ContextStore.
type Dispatcher struct {
	Store     ContextStore
	Client    HTTPDoer
	Transform TransformFunc
	Logger    *slog.Logger
}

// NewDispatcher builds a Dispatcher with the given dependencies. Client
// defaults to http.DefaultClient and Logger to slog.Default() when nil.
func NewDispatcher(store ContextStore, client HTTPDoer, transform TransformFunc, logger *slog.Logger) *Dispatcher {
	if client == nil {
		client = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{Store: store, Client: client, Transform: transform, Logger: logger}
}

// Run walks pl through its middleware chain and destination for event,
// persisting one PipelineContext/ExtractorContext append per transition.
// It returns the pipeline's terminal status; it never returns an error for
// a business-level drop -- those are recorded in the context chain and
// reflected in the returned PipelineStatus.
func (d *Dispatcher) Run(ctx context.Context, event domain.Event, pl domain.Pipeline) (domain.PipelineStatus, error) {
	eventPayload, err := decodePayload(event.Payload)
	if err != nil {
		return d.drop(ctx, pl, event.Key, "template: event payload")
	}

	values := Values{"event": eventPayload}

	pc := domain.NewPipelineContext(pl.Key, event.Key)
	pc.Stage = domain.PipelineStageRunningExtractor

	if err := d.Store.AppendPipeline(ctx, pc); err != nil {
		return domain.PipelineStatus{}, ioserr.Wrap(ioserr.Internal, "append pipeline context", err)
	}

	for _, step := range pl.Middleware {
		status, stepErr := d.runStep(ctx, step, pl, event.Key, values)
		if stepErr != nil {
			return domain.PipelineStatus{}, stepErr
		}

		if status.IsDropped() {
			pc.Status = status
			pc.Stage = domain.PipelineStageCompleted
			pc.Timestamp = time.Now().UTC()

			if err := d.Store.AppendPipeline(ctx, pc); err != nil {
				d.Logger.Error("append dropped pipeline context", slog.Any("error", err))
			}

			return status, nil
		}
	}

	pc.Stage = domain.PipelineStageFinishedExtractors
	pc.Timestamp = time.Now().UTC()

	if err := d.Store.AppendPipeline(ctx, pc); err != nil {
		return domain.PipelineStatus{}, ioserr.Wrap(ioserr.Internal, "append finished-extractors context", err)
	}

	return d.sendDestination(ctx, pl, pc, values)
}

// runStep executes one middleware entry, returning a non-empty dropped
// status when the step terminally fails.
func (d *Dispatcher) runStep(
	ctx context.Context,
	step domain.Middleware,
	pl domain.Pipeline,
	eventKey domain.Id,
	values Values,
) (domain.PipelineStatus, error) {
	switch step.Type {
	case domain.MiddlewareTransformer:
		return d.runTransformer(ctx, step, values)
	case domain.MiddlewareHTTPExtractor:
		return d.runExtractor(ctx, *step.HTTPExtractor, pl.Key, eventKey, values)
	default:
		return domain.StatusDropped("unknown middleware type: " + step.Type), nil
	}
}

func (d *Dispatcher) runTransformer(ctx context.Context, step domain.Middleware, values Values) (domain.PipelineStatus, error) {
	if step.Transformer == nil {
		return domain.StatusSucceeded(), nil
	}

	if d.Transform == nil {
		return domain.StatusSucceeded(), nil
	}

	out, err := d.Transform(ctx, step.Transformer.Language, step.Transformer.Code, values)
	if err != nil {
		return domain.StatusDropped("transformer: " + err.Error()), nil
	}

	for k, v := range out {
		values[k] = v
	}

	return domain.StatusSucceeded(), nil
}

// runExtractor resolves the extractor's templates, appends its New
// context, invokes it with retry/timeout policy, and appends its terminal
// context. On success, the result is merged into values keyed by the
// extractor's own key so later extractors and the destination can
// reference it.
func (d *Dispatcher) runExtractor(
	ctx context.Context,
	ext domain.HttpExtractor,
	pipelineKey string,
	eventKey domain.Id,
	values Values,
) (domain.PipelineStatus, error) {
	ec := domain.NewExtractorContext(ext.Key, pipelineKey, eventKey)
	if err := d.Store.AppendExtractor(ctx, ec); err != nil {
		return domain.PipelineStatus{}, ioserr.Wrap(ioserr.Internal, "append extractor context", err)
	}

	timeout, err := ext.Timeout()
	if err != nil {
		return domain.StatusDropped("template: " + ext.Key), nil
	}

	result, attempts, callErr := d.invokeWithRetry(ctx, ext.URL, ext.Method, ext.Headers, ext.Data, ext.Policies.Retry, timeout, values)

	ec.Transaction = &domain.Transaction{AttemptCount: attempts, StartedAt: ec.Timestamp}
	now := time.Now().UTC()
	ec.Transaction.EndedAt = &now

	if callErr != nil {
		ec.Status = domain.StatusDropped("extractor: " + ext.Key)
		ec.Transaction.Outcome = "dropped"
		ec.Timestamp = now

		if err := d.Store.AppendExtractor(ctx, ec); err != nil {
			d.Logger.Error("append dropped extractor context", slog.Any("error", err))
		}

		return domain.StatusDropped("extractor: " + ext.Key), nil
	}

	ec.Stage = domain.FinishedExtractorStage(result)
	ec.Transaction.Outcome = "succeeded"
	ec.Timestamp = now

	if err := d.Store.AppendExtractor(ctx, ec); err != nil {
		return domain.PipelineStatus{}, ioserr.Wrap(ioserr.Internal, "append finished extractor context", err)
	}

	decoded, decodeErr := decodePayload(result)
	if decodeErr != nil {
		values[ext.Key] = map[string]any{}
	} else {
		values[ext.Key] = decoded
	}

	return domain.StatusSucceeded(), nil
}

// sendDestination composes and sends the pipeline's terminal call.
func (d *Dispatcher) sendDestination(
	ctx context.Context,
	pl domain.Pipeline,
	pc domain.PipelineContext,
	values Values,
) (domain.PipelineStatus, error) {
	pc.Stage = domain.PipelineStageSendingDestination
	pc.Timestamp = time.Now().UTC()

	if err := d.Store.AppendPipeline(ctx, pc); err != nil {
		return domain.PipelineStatus{}, ioserr.Wrap(ioserr.Internal, "append sending-destination context", err)
	}

	timeout, err := pl.Destination.Timeout()
	if err != nil {
		return d.drop(ctx, pl, pc.EventKey, "template: destination")
	}

	_, attempts, callErr := d.invokeWithRetry(
		ctx, pl.Destination.URL, pl.Destination.Method, pl.Destination.Headers, pl.Destination.Data,
		pl.Destination.Policies.Retry, timeout, values,
	)

	pc.Transaction = &domain.Transaction{AttemptCount: attempts, StartedAt: pc.Timestamp}
	now := time.Now().UTC()
	pc.Transaction.EndedAt = &now
	pc.Timestamp = now
	pc.Stage = domain.PipelineStageCompleted

	if callErr != nil {
		pc.Status = domain.StatusDropped("destination: " + callErr.Error())
		pc.Transaction.Outcome = "dropped"

		if err := d.Store.AppendPipeline(ctx, pc); err != nil {
			d.Logger.Error("append dropped destination context", slog.Any("error", err))
		}

		return pc.Status, nil
	}

	pc.Status = domain.StatusSucceeded()
	pc.Transaction.Outcome = "succeeded"

	if err := d.Store.AppendPipeline(ctx, pc); err != nil {
		return domain.PipelineStatus{}, ioserr.Wrap(ioserr.Internal, "append completed destination context", err)
	}

	return pc.Status, nil
}

func (d *Dispatcher) drop(ctx context.Context, pl domain.Pipeline, eventKey domain.Id, reason string) (domain.PipelineStatus, error) {
	pc := domain.NewPipelineContext(pl.Key, eventKey)
	pc.Status = domain.StatusDropped(reason)
	pc.Stage = domain.PipelineStageCompleted

	if err := d.Store.AppendPipeline(ctx, pc); err != nil {
		d.Logger.Error("append drop context", slog.Any("error", err))
	}

	return pc.Status, nil
}

// invokeWithRetry resolves templates and performs the HTTP call, retrying
// on network errors, 5xx responses, 408, and 429 up to maximumAttempts with
// the configured interval between attempts. 4xx responses other than 408
// and 429 are terminal. The returned count is the number of attempts made.
func (d *Dispatcher) invokeWithRetry(
	ctx context.Context,
	urlTemplate, method, headersTemplate, bodyTemplate string,
	retry domain.RetryPolicy,
	timeout time.Duration,
	values Values,
) (json.RawMessage, int, error) {
	url, err := Resolve(urlTemplate, values)
	if err != nil {
		return nil, 0, err
	}

	headerBlob, err := Resolve(headersTemplate, values)
	if err != nil {
		return nil, 0, err
	}

	body, err := Resolve(bodyTemplate, values)
	if err != nil {
		return nil, 0, err
	}

	headers := parseHeaders(headerBlob)
	maxAttempts := retry.MaximumAttempts

	if maxAttempts == 0 {
		maxAttempts = 1
	}

	interval, err := retry.GetInterval()
	if err != nil {
		interval = 0
	}

	var (
		lastErr error
		made    uint64
	)

	for attempt := uint64(1); attempt <= maxAttempts; attempt++ {
		made = attempt

		result, retriable, callErr := d.do(ctx, url, method, headers, body, timeout)
		if callErr == nil {
			return result, int(attempt), nil
		}

		lastErr = callErr

		if !retriable || attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, int(attempt), ctx.Err()
		case <-time.After(interval):
		}
	}

	return nil, int(made), lastErr
}

// do performs a single HTTP attempt, reporting whether a failure is
// retriable: network errors, 5xx, 408, and 429 are; other 4xx are terminal.
func (d *Dispatcher) do(
	ctx context.Context,
	url, method string,
	headers map[string]string,
	body string,
	timeout time.Duration,
) (json.RawMessage, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, domain.NormalizeMethod(method), url, strings.NewReader(body))
	if err != nil {
		return nil, false, ioserr.Wrap(ioserr.BadRequest, "build request", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, true, ioserr.Wrap(ioserr.UpstreamFailure, "http call", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, ioserr.Wrap(ioserr.UpstreamFailure, "read response", err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, true, ioserr.New(ioserr.UpstreamFailure, "server error: "+resp.Status)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, ioserr.New(ioserr.TooManyRequests, "rate limited")
	case resp.StatusCode == http.StatusRequestTimeout:
		return nil, true, ioserr.New(ioserr.Timeout, "request timeout")
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, false, ioserr.New(ioserr.BadRequest, "client error: "+resp.Status)
	default:
		return payload, false, nil
	}
}

// parseHeaders interprets a resolved header template as either a JSON
// object or newline-delimited "Key: value" pairs.
func parseHeaders(blob string) map[string]string {
	headers := map[string]string{}

	trimmed := strings.TrimSpace(blob)
	if trimmed == "" {
		return headers
	}

	if trimmed[0] == '{' {
		var decoded map[string]string
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}

	for _, line := range strings.Split(trimmed, "\n") {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}

		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])

		if key != "" {
			headers[key] = val
		}
	}

	return headers
}

func decodePayload(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, ioserr.Wrap(ioserr.BadRequest, "decode payload", err)
	}

	return decoded, nil
}
