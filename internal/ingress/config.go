// Package ingress implements the event handler: the HTTP-facing entry
// point that admits an inbound event against its tenant credential,
// persists it and its initial root context, fans it out to every
// subscribing pipeline, and returns without waiting for any pipeline to
// finish (spec.md §4.1).
package ingress

import "github.com/integration-os/core/internal/config"

// Config bounds the event handler's own admission rules, independent of
// the credential gate's throughput accounting.
type Config struct {
	// MaxPayloadBytes is the inclusive size cap on an inbound event body.
	// A payload exactly at the cap is admitted; one byte over is rejected
	// BadRequest (spec.md §8 boundary test).
	MaxPayloadBytes int64
}

// LoadConfig reads MAX_EVENT_PAYLOAD_BYTES from the environment.
func LoadConfig() Config {
	return Config{
		MaxPayloadBytes: config.GetEnvInt64("MAX_EVENT_PAYLOAD_BYTES", 1<<20),
	}
}
