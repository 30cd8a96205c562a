package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	// secretLength is the exact byte length spec.md §6 requires of SECRET.
	secretLength = 32

	defaultCacheSize      = 10_000
	defaultCacheTTLSecs   = 300
	defaultEventTopic     = "integrationos-events"
	defaultPartitionCount = 4
	defaultEnvironment    = "live"
)

// ErrInvalidSecretLength is returned by CoreConfig.Validate when SECRET is
// not exactly 32 bytes. Per spec.md §6, this is a ConfigurationError that
// must stop the process at init and never reach the hot path.
var ErrInvalidSecretLength = errors.New("SECRET must be exactly 32 bytes")

// ErrInvalidEnvironment is returned when ENVIRONMENT is not "test" or "live".
var ErrInvalidEnvironment = errors.New("ENVIRONMENT must be \"test\" or \"live\"")

// CoreConfig bounds the process-wide settings spec.md §6 names that do not
// belong to any single subsystem's own Config: cache sizing, the emit
// topic/partition layout, and the environment/secret fatal-at-init checks.
// Each cmd/ entrypoint loads one CoreConfig and validates it before
// constructing any dependency.
type CoreConfig struct {
	CacheSize      int
	CacheTTL       time.Duration
	EventTopic     string
	PartitionCount int
	KafkaBrokers   []string
	Secret         string
	Environment    string
}

// LoadCoreConfig reads CACHE_SIZE, CACHE_TTL_SECS, EVENT_TOPIC,
// EVENT_PARTITION_COUNT, KAFKA_BROKERS, SECRET, and ENVIRONMENT from the
// process environment.
func LoadCoreConfig() CoreConfig {
	return CoreConfig{
		CacheSize:      GetEnvInt("CACHE_SIZE", defaultCacheSize),
		CacheTTL:       time.Duration(GetEnvInt64("CACHE_TTL_SECS", defaultCacheTTLSecs)) * time.Second,
		EventTopic:     GetEnvStr("EVENT_TOPIC", defaultEventTopic),
		PartitionCount: GetEnvInt("EVENT_PARTITION_COUNT", defaultPartitionCount),
		KafkaBrokers:   ParseCommaSeparatedList(GetEnvStr("KAFKA_BROKERS", "localhost:9092")),
		Secret:         GetEnvStr("SECRET", ""),
		Environment:    GetEnvStr("ENVIRONMENT", defaultEnvironment),
	}
}

// Validate enforces spec.md §6's two fatal-at-startup checks: SECRET must
// be exactly 32 bytes, and ENVIRONMENT must be "test" or "live". Neither
// failure is recoverable at request time -- the caller must exit, never
// serve a request with an invalid CoreConfig.
func (c CoreConfig) Validate() error {
	if len(c.Secret) != secretLength {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidSecretLength, len(c.Secret))
	}

	if c.Environment != "test" && c.Environment != "live" {
		return fmt.Errorf("%w: got %q", ErrInvalidEnvironment, c.Environment)
	}

	return nil
}
