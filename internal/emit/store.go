// Package emit implements the partitioned, idempotent emit stream: publish
// accepts an externally tagged event under a caller-supplied idempotency
// key, a single consumer per partition delivers it at-least-once to a
// registered handler, and exhausted handlers dead-letter their record
// rather than stalling the partition.
package emit

import (
	"context"

	"github.com/integration-os/core/internal/domain"
)

// IdempotencyStore is the unique index on idempotency key. Insert is the
// sole gate between "first time we've seen this key" and "duplicate":
// spec.md §4.3 requires a uniqueness violation to short-circuit before any
// stream write happens.
type IdempotencyStore interface {
	// Insert attempts to claim key. It returns (true, nil) on first claim
	// and (false, nil) -- never an error -- when the key already exists,
	// so callers can distinguish "duplicate" from "storage failure".
	Insert(ctx context.Context, idem domain.Idempotency) (inserted bool, err error)
}

// DeadLetterStore is the parallel "failed" collection keyed by
// partition+offset that an exhausted handler appends to so its partition
// does not stall (spec.md §4.3).
type DeadLetterStore interface {
	Append(ctx context.Context, dl domain.DeadLetter) error
}

// OffsetStore durably records the last committed offset per partition so
// a restarted consumer resumes instead of replaying or skipping records
// (spec.md §4.3 "Consumers must survive process restarts").
type OffsetStore interface {
	CommitOffset(ctx context.Context, topic string, partition int32, offset int64) error
	LastOffset(ctx context.Context, topic string, partition int32) (offset int64, found bool, err error)
}
