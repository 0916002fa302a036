package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/scanbridge/go-scanbridge/logger"
	"github.com/scanbridge/go-scanbridge/scanner"
	"github.com/scanbridge/go-scanbridge/transport"
)

// settings are the resolved runtime parameters: defaults, overlaid by the
// config file, overlaid by command-line flags.
type settings struct {
	Endpoint         string
	AutoReconnect    bool
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	Keepalive        time.Duration
	RequestTimeout   time.Duration
	LogLevel         logger.Level
}

func defaultSettings() settings {
	return settings{
		Endpoint:         transport.DefaultEndpoint,
		AutoReconnect:    true,
		ReconnectInitial: transport.DefaultReconnectInitialDelay,
		ReconnectMax:     transport.DefaultReconnectMaxDelay,
		Keepalive:        transport.DefaultKeepaliveInterval,
		RequestTimeout:   transport.DefaultRequestTimeout,
		LogLevel:         logger.WarnLevel,
	}
}

// scanctl config.toml key mapping to runtime settings.
type fileConfig struct {
	Endpoint           string `toml:"endpoint"`
	AutoReconnect      bool   `toml:"auto_reconnect"`
	ReconnectInitialMs int64  `toml:"reconnect_initial_delay_ms"`
	ReconnectMaxMs     int64  `toml:"reconnect_max_delay_ms"`
	KeepaliveMs        int64  `toml:"keepalive_interval_ms"`
	RequestTimeoutMs   int64  `toml:"request_timeout_ms"`
	LogLevel           string `toml:"log_level"`
}

// applyFileConfig overlays values defined in the TOML file at path onto s.
func applyFileConfig(path string, s *settings) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("endpoint") {
		s.Endpoint = strings.TrimSpace(raw.Endpoint)
	}
	if meta.IsDefined("auto_reconnect") {
		s.AutoReconnect = raw.AutoReconnect
	}
	if meta.IsDefined("reconnect_initial_delay_ms") {
		s.ReconnectInitial = time.Duration(raw.ReconnectInitialMs) * time.Millisecond
	}
	if meta.IsDefined("reconnect_max_delay_ms") {
		s.ReconnectMax = time.Duration(raw.ReconnectMaxMs) * time.Millisecond
	}
	if meta.IsDefined("keepalive_interval_ms") {
		s.Keepalive = time.Duration(raw.KeepaliveMs) * time.Millisecond
	}
	if meta.IsDefined("request_timeout_ms") {
		s.RequestTimeout = time.Duration(raw.RequestTimeoutMs) * time.Millisecond
	}
	if meta.IsDefined("log_level") {
		level, err := parseLogLevel(raw.LogLevel)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		s.LogLevel = level
	}

	return nil
}

func parseLogLevel(s string) (logger.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "warn", "warning":
		return logger.WarnLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// resolveSettings builds the effective settings for one command invocation.
// Flags override file values, which override defaults.
func resolveSettings(configPath, endpoint, logLevel string, cmd *cobra.Command) (settings, error) {
	s := defaultSettings()

	if configPath != "" {
		if err := applyFileConfig(configPath, &s); err != nil {
			return settings{}, err
		}
	}

	if cmd.Flags().Changed("endpoint") {
		s.Endpoint = endpoint
	}
	if cmd.Flags().Changed("log-level") {
		level, err := parseLogLevel(logLevel)
		if err != nil {
			return settings{}, err
		}
		s.LogLevel = level
	}

	return s, nil
}

// clientOptions translates settings into scanner client options. scanctl
// always connects explicitly, so auto-connect stays off.
func (s settings) clientOptions() []scanner.Option {
	log := logger.NewSlog(s.LogLevel, false)

	return []scanner.Option{
		scanner.WithAutoConnect(false),
		scanner.WithEndpoint(s.Endpoint),
		scanner.WithLogger(log),
		scanner.WithConnOptions(
			transport.WithAutoReconnect(s.AutoReconnect),
			transport.WithReconnectDelay(s.ReconnectInitial, s.ReconnectMax),
			transport.WithKeepaliveInterval(s.Keepalive),
			transport.WithRequestTimeout(s.RequestTimeout),
		),
	}
}

// newClient builds and connects a client for one command invocation.
func newClient(cmd *cobra.Command, s settings) (*scanner.Client, error) {
	client, err := scanner.Dial(cmd.Context(), s.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", s.Endpoint, err)
	}

	return client, nil
}
