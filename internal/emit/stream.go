package emit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	kafka "github.com/segmentio/kafka-go"

	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/ioserr"
)

func marshalEvent(event domain.EmitEvent) ([]byte, error) {
	return json.Marshal(event)
}

// partitionHeader carries the partition this package has already computed
// for a message. explicitPartitioner reads it back instead of hashing the
// key itself, so the hash lives in one place (partitionFor) regardless of
// how kafka-go chooses to balance.
const partitionHeader = "x-integrationos-partition"

// explicitPartitioner is a kafka.Balancer that always routes a message to
// the partition named in its own partitionHeader, set by Stream.Publish
// before handing the message to the Writer. kafka-go requires a Balancer
// even when the caller has already decided the partition.
type explicitPartitioner struct{}

func (explicitPartitioner) Balance(msg kafka.Message, partitions ...int) int {
	for _, h := range msg.Headers {
		if h.Key != partitionHeader {
			continue
		}

		if want, err := strconv.Atoi(string(h.Value)); err == nil {
			for _, p := range partitions {
				if p == want {
					return p
				}
			}
		}
	}

	if len(partitions) == 0 {
		return 0
	}

	return partitions[0]
}

// StreamConfig configures the emit stream's Kafka wiring.
type StreamConfig struct {
	Brokers         []string
	Topic           string
	PartitionCount  int
	ConsumerGroupID string
}

// Stream publishes EmitEvents to, and reads them back from, a partitioned
// Kafka topic. It owns no business logic beyond partition selection and
// wire encoding; Publish's idempotency check and Consumer's retry/dead
// letter handling live alongside it in this package.
type Stream struct {
	cfg    StreamConfig
	writer *kafka.Writer
	idem   IdempotencyStore
	logger *slog.Logger
}

// NewStream builds a Stream ready to publish. Readers are built separately
// by NewReader, which each Consumer's Run calls for its own partition,
// since each needs its own connection.
func NewStream(cfg StreamConfig, idem IdempotencyStore, logger *slog.Logger) *Stream {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     explicitPartitioner{},
		RequiredAcks: kafka.RequireAll,
	}

	return &Stream{cfg: cfg, writer: writer, idem: idem, logger: logger}
}

// Close releases the underlying writer connections.
func (s *Stream) Close() error {
	return s.writer.Close()
}

// PublishResult is the caller-visible outcome of Publish.
type PublishResult string

const (
	Accepted  PublishResult = "Accepted"
	Duplicate PublishResult = "Duplicate"
)

// Publish implements spec.md §4.3's publish contract: claim the
// idempotency key first, and only write to the partitioned log on a
// first claim. partitionKey, if empty, falls back to the idempotency key.
func (s *Stream) Publish(ctx context.Context, event domain.EmitEvent, idem domain.Idempotency, partitionKey string) (PublishResult, error) {
	inserted, err := s.idem.Insert(ctx, idem)
	if err != nil {
		return "", err
	}

	if !inserted {
		return Duplicate, nil
	}

	if partitionKey == "" {
		partitionKey = idem.Key
	}

	partition := partitionFor(partitionKey, s.cfg.PartitionCount)
	event.Partition = partition
	event.IdempotencyKey = idem.Key

	payload, err := marshalEvent(event)
	if err != nil {
		return "", ioserr.Wrap(ioserr.Internal, "encode emit event", err)
	}

	msg := kafka.Message{
		Key:   []byte(partitionKey),
		Value: payload,
		Headers: []kafka.Header{
			{Key: partitionHeader, Value: []byte(strconv.Itoa(int(partition)))},
		},
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return "", ioserr.Wrap(ioserr.UpstreamFailure, "write emit event to partition", err)
	}

	s.logger.Debug("emit event published", "type", event.Type, "partition", partition, "idempotencyKey", idem.Key)

	return Accepted, nil
}

// NewReader opens a Kafka reader dedicated to a single partition, resuming
// from lastOffset+1 when one is known so a restarted consumer neither
// replays nor skips records (spec.md §4.3).
func NewReader(cfg StreamConfig, partition int, lastOffset int64, found bool) *kafka.Reader {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   cfg.Brokers,
		Topic:     cfg.Topic,
		Partition: partition,
		GroupID:   "",
	})

	if found {
		_ = reader.SetOffset(lastOffset + 1)
	} else {
		_ = reader.SetOffset(kafka.FirstOffset)
	}

	return reader
}
