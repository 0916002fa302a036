package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scanbridge/go-scanbridge/logger"
	"github.com/scanbridge/go-scanbridge/transport"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scanctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestApplyFileConfigOverlay(t *testing.T) {
	require := require.New(t)

	path := writeConfig(t, `
endpoint = "ws://192.168.1.50:8585"
reconnect_initial_delay_ms = 250
log_level = "debug"
`)

	s := defaultSettings()
	require.NoError(applyFileConfig(path, &s))

	// defined keys override defaults
	require.Equal("ws://192.168.1.50:8585", s.Endpoint)
	require.Equal(250*time.Millisecond, s.ReconnectInitial)
	require.Equal(logger.DebugLevel, s.LogLevel)

	// undefined keys keep their defaults
	require.True(s.AutoReconnect)
	require.Equal(transport.DefaultReconnectMaxDelay, s.ReconnectMax)
	require.Equal(transport.DefaultKeepaliveInterval, s.Keepalive)
	require.Equal(transport.DefaultRequestTimeout, s.RequestTimeout)
}

func TestApplyFileConfigAllKeys(t *testing.T) {
	require := require.New(t)

	path := writeConfig(t, `
endpoint = "wss://bridge.local/ws"
auto_reconnect = false
reconnect_initial_delay_ms = 500
reconnect_max_delay_ms = 10000
keepalive_interval_ms = 15000
request_timeout_ms = 2000
log_level = "error"
`)

	s := defaultSettings()
	require.NoError(applyFileConfig(path, &s))

	require.Equal("wss://bridge.local/ws", s.Endpoint)
	require.False(s.AutoReconnect)
	require.Equal(500*time.Millisecond, s.ReconnectInitial)
	require.Equal(10*time.Second, s.ReconnectMax)
	require.Equal(15*time.Second, s.Keepalive)
	require.Equal(2*time.Second, s.RequestTimeout)
	require.Equal(logger.ErrorLevel, s.LogLevel)
}

func TestApplyFileConfigErrors(t *testing.T) {
	require := require.New(t)

	s := defaultSettings()
	require.Error(applyFileConfig(filepath.Join(t.TempDir(), "missing.toml"), &s))

	badLevel := writeConfig(t, `log_level = "verbose"`)
	s = defaultSettings()
	require.Error(applyFileConfig(badLevel, &s))

	malformed := writeConfig(t, `endpoint = [`)
	s = defaultSettings()
	require.Error(applyFileConfig(malformed, &s))
}

func TestParseLogLevel(t *testing.T) {
	require := require.New(t)

	for input, want := range map[string]logger.Level{
		"debug":   logger.DebugLevel,
		"info":    logger.InfoLevel,
		"warn":    logger.WarnLevel,
		"WARNING": logger.WarnLevel,
		" error ": logger.ErrorLevel,
	} {
		level, err := parseLogLevel(input)
		require.NoError(err, input)
		require.Equal(want, level, input)
	}

	_, err := parseLogLevel("trace")
	require.Error(err)
}

func TestClientOptionsValid(t *testing.T) {
	s := defaultSettings()
	opts := s.clientOptions()
	require.NotEmpty(t, opts)
}
