package watchdog

import (
	"context"
	"log/slog"
	"time"

	"github.com/integration-os/core/internal/contextstore"
	"github.com/integration-os/core/internal/domain"
)

const timeoutReason = "timeout"

// Watchdog periodically sweeps the context store for orphaned extractor
// attempts and drops the owning pipeline and, once every child pipeline
// is settled, the root event itself.
type Watchdog struct {
	store  contextstore.Store
	cfg    Config
	logger *slog.Logger
}

// New builds a Watchdog over store.
func New(store contextstore.Store, cfg Config, logger *slog.Logger) *Watchdog {
	return &Watchdog{store: store, cfg: cfg, logger: logger}
}

// Run polls every cfg.PollDuration until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Error("watchdog sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass: find extractor contexts stuck in stage New past
// EventTimeout and drop their owning pipeline and, when it becomes fully
// settled, their root event.
func (w *Watchdog) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-w.cfg.EventTimeout)

	stale, err := w.store.StaleExtractors(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, ec := range stale {
		if err := w.dropPipeline(ctx, ec); err != nil {
			w.logger.Error("watchdog failed to drop pipeline",
				"eventKey", ec.EventKey, "pipelineKey", ec.PipelineKey, "error", err)
		}
	}

	return nil
}

func (w *Watchdog) dropPipeline(ctx context.Context, ec domain.ExtractorContext) error {
	pc, found, err := w.store.LatestPipeline(ctx, ec.EventKey, ec.PipelineKey)
	if err != nil {
		return err
	}

	if found && pc.IsComplete() {
		return nil
	}

	stage := domain.PipelineStageNew
	if found {
		stage = pc.Stage
	}

	dropped := domain.PipelineContext{
		PipelineKey: ec.PipelineKey,
		EventKey:    ec.EventKey,
		Status:      domain.StatusDropped(timeoutReason),
		Stage:       stage,
		Timestamp:   time.Now().UTC(),
	}

	if err := w.store.AppendPipeline(ctx, dropped); err != nil {
		return err
	}

	w.logger.Warn("pipeline dropped by watchdog",
		"eventKey", ec.EventKey, "pipelineKey", ec.PipelineKey, "reason", timeoutReason)

	return w.maybeDropRoot(ctx, ec.EventKey)
}

// maybeDropRoot appends a terminal RootContext once every child pipeline
// referenced by the root is complete, matching RootContext.IsComplete's
// contract (the root itself never flips state until all children have).
func (w *Watchdog) maybeDropRoot(ctx context.Context, eventKey domain.Id) error {
	return contextstore.MaybeSettleRoot(ctx, w.store, eventKey, timeoutReason)
}
