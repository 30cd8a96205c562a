package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func validCoreConfig() CoreConfig {
	return CoreConfig{
		Secret:      "01234567890123456789012345678901",
		Environment: "live",
	}
}

func TestCoreConfig_ValidateAcceptsWellFormedConfig(t *testing.T) {
	require.NoError(t, validCoreConfig().Validate())
}

func TestCoreConfig_ValidateRejectsShortSecret(t *testing.T) {
	cfg := validCoreConfig()
	cfg.Secret = "too-short"

	err := cfg.Validate()
	require.True(t, errors.Is(err, ErrInvalidSecretLength))
}

func TestCoreConfig_ValidateRejectsLongSecret(t *testing.T) {
	cfg := validCoreConfig()
	cfg.Secret = cfg.Secret + "x"

	err := cfg.Validate()
	require.True(t, errors.Is(err, ErrInvalidSecretLength))
}

func TestCoreConfig_ValidateAcceptsTestEnvironment(t *testing.T) {
	cfg := validCoreConfig()
	cfg.Environment = "test"

	require.NoError(t, cfg.Validate())
}

func TestCoreConfig_ValidateRejectsUnknownEnvironment(t *testing.T) {
	cfg := validCoreConfig()
	cfg.Environment = "staging"

	err := cfg.Validate()
	require.True(t, errors.Is(err, ErrInvalidEnvironment))
}
