package domain

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash/fnv"
	"time"
)

// EventState is the externally visible lifecycle status of an ingested
// event, returned in an EventResponse.
type EventState string

const (
	EventPending      EventState = "pending"
	EventAcknowledged EventState = "acknowledged"
	EventCancelled    EventState = "cancelled"
	EventDropped      EventState = "dropped"
)

// HashValue is one of an event's three payload hashes (fast, sha256,
// sha512), carried on EventResponse for client-side integrity checks.
type HashValue struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// HashPayload computes the three hashes ingress attaches to every Event:
// a fast non-cryptographic hash for cheap duplicate pre-checks and the two
// cryptographic hashes used for client-facing integrity verification.
func HashPayload(payload []byte) [3]HashValue {
	fast := fnv.New64a()
	_, _ = fast.Write(payload)

	sum256 := sha256.Sum256(payload)
	sum512 := sha512.Sum512(payload)

	return [3]HashValue{
		{Algorithm: "fnv-1a", Value: hex.EncodeToString(fast.Sum(nil))},
		{Algorithm: "sha256", Value: hex.EncodeToString(sum256[:])},
		{Algorithm: "sha512", Value: hex.EncodeToString(sum512[:])},
	}
}

// Event is created on ingress and immutable thereafter.
type Event struct {
	Key               Id           `json:"_id"`
	AccessKeyRef      Id           `json:"accessKeyRef"`
	Name              string       `json:"name"`
	Payload           []byte       `json:"payload"`
	Hashes            [3]HashValue `json:"hashes"`
	PayloadByteLength int          `json:"payloadByteLength"`
	Environment       Environment  `json:"environment"`
	CreatedAt         time.Time    `json:"createdAt"`
}

// NewEvent builds an Event from a raw payload, computing its hashes and
// byte length.
func NewEvent(accessKeyRef Id, name string, payload []byte, env Environment) Event {
	return Event{
		Key:               NewId("evt"),
		AccessKeyRef:      accessKeyRef,
		Name:              name,
		Payload:           payload,
		Hashes:            HashPayload(payload),
		PayloadByteLength: len(payload),
		Environment:       env,
		CreatedAt:         time.Now().UTC(),
	}
}

// EventResponse is the acknowledgement body returned to the ingress
// caller.
type EventResponse struct {
	Status            EventState   `json:"status"`
	Key               Id           `json:"key"`
	PayloadByteLength int          `json:"payloadByteLength"`
	Hashes            [3]HashValue `json:"hashes"`
}

// NewEventResponse builds the Acknowledged response for a stored event.
func NewEventResponse(event Event) EventResponse {
	return EventResponse{
		Status:            EventAcknowledged,
		Key:               event.Key,
		PayloadByteLength: event.PayloadByteLength,
		Hashes:            event.Hashes,
	}
}

// Duplicates is a cheap pre-check result: true means the fast hash
// collides with a previously seen payload and the caller should run the
// full deduplication probe before trusting it.
type Duplicates struct {
	PossibleCollision bool `json:"possibleCollision"`
}

// EventAccess is the decoded, cached credential record consulted by the
// credential gate before admitting an event.
type EventAccess struct {
	ID          Id          `json:"_id"`
	Name        string      `json:"name"`
	Key         string      `json:"key"`
	Namespace   string      `json:"namespace"`
	Platform    string      `json:"platform"`
	Type        string      `json:"type"`
	Group       string      `json:"group"`
	Ownership   Ownership   `json:"ownership"`
	AccessKey   string      `json:"accessKey"`
	Throughput  uint64      `json:"throughput"`
	Environment Environment `json:"environment"`
	RecordMetadata
}

// DefaultThroughput is the soft per-second admission ceiling applied when
// an EventAccess record does not specify one.
const DefaultThroughput uint64 = 500

// WithKey returns a copy of the access record with Key set, mirroring the
// builder-style mutator used when attaching the access-key hash lookup
// result to a freshly decoded record.
func (a EventAccess) WithKey(key string) EventAccess {
	a.Key = key

	return a
}

// AllowsType reports whether this access record's connection type matches
// the inbound event's type. Event-name matching against a pipeline's
// Source.Events happens downstream in the control-data read side.
func (a EventAccess) AllowsType(eventType string) bool {
	return a.Type == eventType
}
