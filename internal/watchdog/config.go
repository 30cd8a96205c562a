// Package watchdog detects orphaned pipeline attempts: a crash between
// appending an extractor context in stage New and the HTTP call that
// would finish it leaves that chain stuck. The watchdog periodically
// sweeps for extractor contexts stuck in stage New past a grace period
// and drops the owning pipeline with reason "timeout" (spec.md §4.5).
package watchdog

import (
	"time"

	"github.com/integration-os/core/internal/config"
)

// Config bounds the watchdog's poll cadence and the grace period before an
// extractor stuck in stage New is considered orphaned.
type Config struct {
	PollDuration time.Duration
	EventTimeout time.Duration
}

// LoadConfig reads POLL_DURATION and EVENT_TIMEOUT from the environment,
// defaulting to the values spec.md §9 scenario 5 exercises (5 minute
// grace period).
func LoadConfig() Config {
	return Config{
		PollDuration: config.GetEnvDuration("POLL_DURATION", 30*time.Second),
		EventTimeout: config.GetEnvDuration("EVENT_TIMEOUT", 5*time.Minute),
	}
}
