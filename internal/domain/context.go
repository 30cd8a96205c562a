package domain

import (
	"encoding/json"
	"time"
)

// PipelineStatus is the terminal/non-terminal status carried by every
// context variant. Succeeded does not mean "finished" on its own -- a
// context is complete only once combined with its Stage (see IsComplete
// on each context type).
type PipelineStatus struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

const (
	outcomeSucceeded = "succeeded"
	outcomeDropped   = "dropped"
)

// StatusSucceeded is the default, non-terminal status every new context
// starts in.
func StatusSucceeded() PipelineStatus {
	return PipelineStatus{Outcome: outcomeSucceeded}
}

// StatusDropped marks a context as terminally dropped with a reason, e.g.
// "timeout" or "extractor: charge_lookup".
func StatusDropped(reason string) PipelineStatus {
	return PipelineStatus{Outcome: outcomeDropped, Reason: reason}
}

// IsDropped reports whether the status is a terminal drop.
func (s PipelineStatus) IsDropped() bool {
	return s.Outcome == outcomeDropped
}

// Transaction records the attempts made for one extractor or destination
// call; AttemptCount is how many HTTP attempts were made.
type Transaction struct {
	AttemptCount int        `json:"attemptCount"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	Outcome      string     `json:"outcome,omitempty"`
}

// Stage is the extractor's position in its lifecycle: either still New
// (no completed attempt yet) or FinishedExtractor, holding the extractor's
// JSON result.
type Stage struct {
	Name   string          `json:"name"`
	Result json.RawMessage `json:"result,omitempty"`
}

const (
	StageNew               = "New"
	StageFinishedExtractor = "FinishedExtractor"
)

// NewStage returns the initial Stage for a freshly created extractor
// context.
func NewStage() Stage {
	return Stage{Name: StageNew}
}

// FinishedExtractorStage returns a Stage carrying the extractor's result.
func FinishedExtractorStage(result json.RawMessage) Stage {
	return Stage{Name: StageFinishedExtractor, Result: result}
}

// Finished reports whether the stage represents a completed extractor.
func (s Stage) Finished() bool {
	return s.Name == StageFinishedExtractor
}

// ExtractorContext is appended once per extractor invocation and once on
// completion. It is immutable once written. The dispatcher does not read
// these rows back; the watchdog's sweep reads them to find extractors
// still in stage New.
type ExtractorContext struct {
	ExtractorKey string         `json:"extractorKey"`
	PipelineKey  string         `json:"pipelineKey"`
	EventKey     Id             `json:"eventKey"`
	Status       PipelineStatus `json:"status"`
	Stage        Stage          `json:"stage"`
	Timestamp    time.Time      `json:"timestamp"`
	Transaction  *Transaction   `json:"transaction,omitempty"`
}

// NewExtractorContext starts a fresh extractor context in stage New.
func NewExtractorContext(extractorKey, pipelineKey string, eventKey Id) ExtractorContext {
	return ExtractorContext{
		ExtractorKey: extractorKey,
		PipelineKey:  pipelineKey,
		EventKey:     eventKey,
		Status:       StatusSucceeded(),
		Stage:        NewStage(),
		Timestamp:    time.Now().UTC(),
	}
}

// IsDropped reports whether this context's status is a terminal drop.
func (c ExtractorContext) IsDropped() bool {
	return c.Status.IsDropped()
}

// IsFinished reports whether the extractor produced a result.
func (c ExtractorContext) IsFinished() bool {
	return c.Stage.Finished()
}

// IsComplete reports whether this extractor context requires no further
// processing: either it was dropped, or it finished successfully.
func (c ExtractorContext) IsComplete() bool {
	return c.IsDropped() || c.IsFinished()
}

// PipelineContext is one per (event, pipeline). Stage mirrors the
// dispatcher's state machine: New, RunningExtractor(i), FinishedExtractors,
// SendingDestination, then a terminal PipelineStatus.
type PipelineContext struct {
	PipelineKey string         `json:"pipelineKey"`
	EventKey    Id             `json:"eventKey"`
	Status      PipelineStatus `json:"status"`
	Stage       string         `json:"stage"`
	Timestamp   time.Time      `json:"timestamp"`
	Transaction *Transaction   `json:"transaction,omitempty"`
}

const (
	PipelineStageNew                = "New"
	PipelineStageRunningExtractor   = "RunningExtractor"
	PipelineStageFinishedExtractors = "FinishedExtractors"
	PipelineStageSendingDestination = "SendingDestination"
	PipelineStageCompleted          = "Completed"
)

// NewPipelineContext starts a fresh pipeline context in stage New.
func NewPipelineContext(pipelineKey string, eventKey Id) PipelineContext {
	return PipelineContext{
		PipelineKey: pipelineKey,
		EventKey:    eventKey,
		Status:      StatusSucceeded(),
		Stage:       PipelineStageNew,
		Timestamp:   time.Now().UTC(),
	}
}

// IsComplete reports whether the pipeline context is dropped or the
// destination call has finished.
func (c PipelineContext) IsComplete() bool {
	return c.Status.IsDropped() || c.Stage == PipelineStageCompleted
}

// RootContext is one per event, aggregating every PipelineContext spawned
// for it. Mutated only by the dispatcher that owns the event.
type RootContext struct {
	EventKey  Id             `json:"eventKey"`
	Status    PipelineStatus `json:"status"`
	Children  []string       `json:"children"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewRootContext starts a fresh root context with no children yet.
func NewRootContext(eventKey Id) RootContext {
	return RootContext{
		EventKey:  eventKey,
		Status:    StatusSucceeded(),
		Children:  []string{},
		Timestamp: time.Now().UTC(),
	}
}

// IsComplete reports whether every child pipeline context referenced by
// this root is complete. The caller supplies the resolved children since
// RootContext itself only stores references.
func (c RootContext) IsComplete(children []PipelineContext) bool {
	if c.Status.IsDropped() {
		return true
	}

	for _, child := range children {
		if !child.IsComplete() {
			return false
		}
	}

	return true
}
