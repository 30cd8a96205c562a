package api

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validServerConfig() ServerConfig {
	return ServerConfig{
		Port:            DefaultPort,
		Host:            DefaultHost,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
	}
}

func TestServerConfig_ValidateAcceptsWellFormedConfig(t *testing.T) {
	require.NoError(t, validServerConfig().Validate())
}

func TestServerConfig_ValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := validServerConfig()
	cfg.Port = 0
	require.True(t, errors.Is(cfg.Validate(), ErrInvalidPort))

	cfg.Port = MaxPort + 1
	require.True(t, errors.Is(cfg.Validate(), ErrInvalidPort))
}

func TestServerConfig_ValidateRejectsEmptyHost(t *testing.T) {
	cfg := validServerConfig()
	cfg.Host = ""
	require.True(t, errors.Is(cfg.Validate(), ErrEmptyHost))
}

func TestServerConfig_ValidateRejectsNonPositiveTimeouts(t *testing.T) {
	cfg := validServerConfig()
	cfg.ReadTimeout = 0
	require.True(t, errors.Is(cfg.Validate(), ErrInvalidReadTimeout))

	cfg = validServerConfig()
	cfg.WriteTimeout = -time.Second
	require.True(t, errors.Is(cfg.Validate(), ErrInvalidWriteTimeout))

	cfg = validServerConfig()
	cfg.ShutdownTimeout = 0
	require.True(t, errors.Is(cfg.Validate(), ErrInvalidShutdownTimeout))
}

func TestServerConfig_AddressFormatsHostPort(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 9090}
	require.Equal(t, "0.0.0.0:9090", cfg.Address())
}
