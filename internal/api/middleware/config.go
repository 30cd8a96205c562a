// Package middleware provides HTTP middleware components for the core API.
package middleware

import "github.com/integration-os/core/internal/config"

const defaultGlobalRPS = 100

// Config holds the front-door rate limiter's configuration: requests per
// second and an optional burst override (0 = computed automatically as
// 2 × RPS).
type Config struct {
	RPS   int
	Burst int
}

// LoadConfig loads middleware config from environment variables with
// fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		RPS:   config.GetEnvInt("GLOBAL_RPS", defaultGlobalRPS),
		Burst: config.GetEnvInt("GLOBAL_BURST", 0),
	}
}
