package emit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/integration-os/core/internal/domain"
)

// ConsumerConfig bounds a partition consumer's retry policy. It mirrors
// domain.RetryPolicy's grammar so one parser serves both the dispatcher
// and the emit stream.
type ConsumerConfig struct {
	Stream   StreamConfig
	Retry    domain.RetryPolicy
	Registry Registry
}

// Consumer pulls records off a single partition in offset order and
// delivers them to the handler registered for the record's type,
// retrying and eventually dead-lettering on failure per spec.md §4.3.
type Consumer struct {
	partition int
	cfg       ConsumerConfig
	offsets   OffsetStore
	deadLtr   DeadLetterStore
	logger    *slog.Logger
}

// NewConsumer builds a Consumer for one partition. It does not start
// reading until Run is called.
func NewConsumer(partition int, cfg ConsumerConfig, offsets OffsetStore, deadLtr DeadLetterStore, logger *slog.Logger) *Consumer {
	return &Consumer{partition: partition, cfg: cfg, offsets: offsets, deadLtr: deadLtr, logger: logger}
}

// Run reads records from its partition until ctx is cancelled. It resumes
// from the last committed offset, so a restart neither replays nor skips
// records. On cancellation it finishes the in-flight record, commits its
// offset, and returns.
func (c *Consumer) Run(ctx context.Context) error {
	lastOffset, found, err := c.offsets.LastOffset(ctx, c.cfg.Stream.Topic, int32(c.partition))
	if err != nil {
		return err
	}

	reader := NewReader(c.cfg.Stream, c.partition, lastOffset, found)
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return err
		}

		var event domain.EmitEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Error("emit record failed to decode, dead-lettering", "partition", c.partition, "offset", msg.Offset, "error", err)

			if err := c.deadLtr.Append(ctx, domain.DeadLetter{
				Partition: int32(c.partition),
				Offset:    msg.Offset,
				Payload:   msg.Value,
				Reason:    "decode: " + err.Error(),
				FailedAt:  time.Now(),
			}); err != nil {
				return err
			}

			if err := c.offsets.CommitOffset(ctx, c.cfg.Stream.Topic, int32(c.partition), msg.Offset); err != nil {
				return err
			}

			continue
		}

		c.process(ctx, msg, event)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// process drives one record through the handler registry with the
// consumer's retry policy, dead-lettering on exhaustion, and always
// commits the offset to OffsetStore so the partition never stalls. The
// reader itself is opened with no consumer group (SetOffset is used to
// resume instead), so offset durability lives entirely in OffsetStore,
// not in kafka-go's group-commit path.
func (c *Consumer) process(ctx context.Context, msg kafka.Message, event domain.EmitEvent) {
	// A record already fetched runs to completion and commits even when
	// Run's context is cancelled mid-retry; Run checks for cancellation
	// only after process returns.
	ctx = context.WithoutCancel(ctx)

	handler, ok := c.cfg.Registry.Lookup(event.Type)
	if !ok {
		c.logger.Error("no handler registered for emit event type, dead-lettering",
			"partition", c.partition, "offset", msg.Offset, "type", event.Type)

		_ = c.deadLtr.Append(ctx, domain.DeadLetter{
			Partition: int32(c.partition),
			Offset:    msg.Offset,
			Type:      event.Type,
			Payload:   event.Payload,
			Reason:    "no handler registered for type: " + string(event.Type),
			FailedAt:  time.Now(),
		})

		if err := c.offsets.CommitOffset(ctx, c.cfg.Stream.Topic, int32(c.partition), msg.Offset); err != nil {
			c.logger.Error("failed to commit emit offset", "partition", c.partition, "offset", msg.Offset, "error", err)
		}

		return
	}

	var lastErr error

	attempts := c.cfg.Retry.MaximumAttempts
	if attempts == 0 {
		attempts = 1
	}

	interval, err := c.cfg.Retry.GetInterval()
	if err != nil {
		interval = 0
	}

	for attempt := uint64(0); attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval * time.Duration(1<<uint(attempt-1))):
			}
		}

		if err := handler(ctx, event.Payload); err != nil {
			lastErr = err

			continue
		}

		lastErr = nil

		break
	}

	if lastErr != nil {
		c.logger.Error("emit handler exhausted retries, dead-lettering",
			"partition", c.partition, "offset", msg.Offset, "type", event.Type, "error", lastErr)

		_ = c.deadLtr.Append(ctx, domain.DeadLetter{
			Partition: int32(c.partition),
			Offset:    msg.Offset,
			Type:      event.Type,
			Payload:   event.Payload,
			Reason:    lastErr.Error(),
			FailedAt:  time.Now(),
		})
	}

	if err := c.offsets.CommitOffset(ctx, c.cfg.Stream.Topic, int32(c.partition), msg.Offset); err != nil {
		c.logger.Error("failed to commit emit offset", "partition", c.partition, "offset", msg.Offset, "error", err)
	}
}
