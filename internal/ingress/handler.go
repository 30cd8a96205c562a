package ingress

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/integration-os/core/internal/controldata"
	"github.com/integration-os/core/internal/contextstore"
	"github.com/integration-os/core/internal/credential"
	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/emit"
	"github.com/integration-os/core/internal/ioserr"
	"github.com/integration-os/core/internal/pipeline"
	"github.com/integration-os/core/internal/storage"
)

// envelope is the shallow shape every inbound event body must have: a
// type and name used to select subscribing pipelines, plus an opaque
// payload handed verbatim to the pipeline dispatcher.
type envelope struct {
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// Handler is the event handler: it admits an inbound event, persists it
// and its root context, and spawns one dispatcher run per subscribing
// pipeline without waiting for any of them to finish (spec.md §4.1).
type Handler struct {
	Gate       *credential.Gate
	Events     EventStore
	Contexts   contextstore.Store
	Pipelines  controldata.PipelineStore
	Dedup      *emit.Deduplication
	Dispatcher *pipeline.Dispatcher
	Config     Config
	Logger     *slog.Logger
}

// NewHandler builds a Handler from its dependencies.
func NewHandler(
	gate *credential.Gate,
	events EventStore,
	contexts contextstore.Store,
	pipelines controldata.PipelineStore,
	dedup *emit.Deduplication,
	dispatcher *pipeline.Dispatcher,
	cfg Config,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		Gate:       gate,
		Events:     events,
		Contexts:   contexts,
		Pipelines:  pipelines,
		Dedup:      dedup,
		Dispatcher: dispatcher,
		Config:     cfg,
		Logger:     logger,
	}
}

// Handle implements the full ingress contract. It returns a non-nil error
// for the Rejected{kind} outcomes (size cap, malformed envelope, and step
// 1-3 of spec.md §4.1) and for store failures; both
// Acknowledged and Dropped are reported as a 200 EventResponse, since both
// mean "the handler accepted custody of the event".
func (h *Handler) Handle(ctx context.Context, rawBody []byte, rawAccessKey string) (domain.EventResponse, error) {
	if int64(len(rawBody)) > h.Config.MaxPayloadBytes {
		return domain.EventResponse{}, ioserr.New(ioserr.BadRequest, "payload exceeds size cap")
	}

	var env envelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return domain.EventResponse{}, ioserr.Wrap(ioserr.BadRequest, "decode event envelope", err)
	}

	access, err := h.Gate.Admit(ctx, rawAccessKey, env.Type)
	if err != nil {
		return domain.EventResponse{}, err
	}

	h.Logger.Debug("event admitted", "accessKey", storage.MaskKey(rawAccessKey), "type", env.Type, "name", env.Name)

	event := domain.NewEvent(access.ID, env.Name, rawBody, access.Environment)

	if h.Dedup != nil {
		collision := h.Dedup.Probe(event.Hashes[0].Value)
		if collision.PossibleCollision {
			h.Logger.Debug("possible event collision, proceeding to authoritative insert", "eventKey", event.Key)
		}
	}

	if err := h.Events.Insert(ctx, event); err != nil {
		return domain.EventResponse{}, err
	}

	root := domain.NewRootContext(event.Key)

	pipelines, err := h.Pipelines.FindBySource(ctx, env.Type, env.Name, access.Group)
	if err != nil {
		return domain.EventResponse{}, err
	}

	if len(pipelines) == 0 {
		root.Status = domain.StatusDropped("no pipelines")

		if err := h.Contexts.AppendRoot(ctx, root); err != nil {
			return domain.EventResponse{}, err
		}

		resp := domain.NewEventResponse(event)
		resp.Status = domain.EventDropped

		return resp, nil
	}

	children := make([]string, 0, len(pipelines))
	for _, pl := range pipelines {
		children = append(children, pl.Key)
	}

	root.Children = children

	if err := h.Contexts.AppendRoot(ctx, root); err != nil {
		return domain.EventResponse{}, err
	}

	for _, pl := range pipelines {
		h.dispatchAsync(event, pl)
	}

	return domain.NewEventResponse(event), nil
}

// dispatchAsync runs one pipeline against event on its own goroutine. The
// handler has already returned Acknowledged to the caller by the time any
// of these complete; failures are recorded in the context chain, not
// returned to anyone (spec.md §4.1 step 6).
func (h *Handler) dispatchAsync(event domain.Event, pl domain.Pipeline) {
	go func() {
		ctx := context.Background()

		status, err := h.Dispatcher.Run(ctx, event, pl)
		if err != nil {
			h.Logger.Error("dispatcher run failed", "eventKey", event.Key, "pipelineKey", pl.Key, "error", err)

			return
		}

		if status.IsDropped() {
			h.Logger.Info("pipeline dropped", "eventKey", event.Key, "pipelineKey", pl.Key, "reason", status.Reason)

			if err := contextstore.MaybeSettleRoot(ctx, h.Contexts, event.Key, status.Reason); err != nil {
				h.Logger.Error("settle root after pipeline drop", "eventKey", event.Key, "error", err)
			}
		}
	}()
}
