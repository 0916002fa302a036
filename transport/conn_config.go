package transport

import (
	"errors"
	"net/url"
	"time"

	"github.com/scanbridge/go-scanbridge/logger"
)

// Defaults for the connection configuration.
const (
	// DefaultEndpoint is the scanner bridge's local WebSocket endpoint.
	DefaultEndpoint = "ws://localhost:8585"
	// DefaultReconnectInitialDelay is the first backoff delay after an
	// unintended close.
	DefaultReconnectInitialDelay = 1 * time.Second
	// DefaultReconnectMaxDelay is the backoff ceiling.
	DefaultReconnectMaxDelay = 30 * time.Second
	// DefaultKeepaliveInterval is the period between keepalive pings.
	DefaultKeepaliveInterval = 30 * time.Second
	// DefaultRequestTimeout is the expiry window for a correlated query.
	DefaultRequestTimeout = 10 * time.Second
	// DefaultDialTimeout bounds a single physical open attempt.
	DefaultDialTimeout = 3 * time.Second
)

// Config represents the configuration parameters for a scanner bridge
// connection. Build one with NewConfig and the WithXXX options.
type Config struct {
	// endpoint is the WebSocket URL of the bridge service.
	endpoint string

	// autoReconnect indicates whether an unintended close schedules a backoff
	// retry. Intentional closes via Disconnect never reconnect.
	// Defaults to true.
	autoReconnect bool

	// reconnectInitialDelay is the backoff delay before the first retry.
	// Successive delays double up to reconnectMaxDelay.
	reconnectInitialDelay time.Duration
	// reconnectMaxDelay caps the backoff delay.
	reconnectMaxDelay time.Duration

	// keepaliveInterval defines how often a ping frame is sent while connected.
	keepaliveInterval time.Duration

	// requestTimeout is the default expiry window for correlated queries.
	requestTimeout time.Duration

	// dialTimeout bounds the WebSocket handshake of one open attempt.
	dialTimeout time.Duration

	// logger receives connection lifecycle and protocol diagnostics.
	logger logger.Logger
}

// NewConfig creates a connection configuration with default values and applies
// the provided options.
//
// Returns the configuration and an error if any option is invalid.
func NewConfig(opts ...ConnOption) (*Config, error) {
	cfg := &Config{
		endpoint:              DefaultEndpoint,
		autoReconnect:         true,
		reconnectInitialDelay: DefaultReconnectInitialDelay,
		reconnectMaxDelay:     DefaultReconnectMaxDelay,
		keepaliveInterval:     DefaultKeepaliveInterval,
		requestTimeout:        DefaultRequestTimeout,
		dialTimeout:           DefaultDialTimeout,
		logger:                logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// Endpoint returns the configured bridge endpoint URL.
func (cfg *Config) Endpoint() string { return cfg.endpoint }

// AutoReconnect reports whether unintended closes schedule a retry.
func (cfg *Config) AutoReconnect() bool { return cfg.autoReconnect }

// KeepaliveInterval returns the ping period.
func (cfg *Config) KeepaliveInterval() time.Duration { return cfg.keepaliveInterval }

// RequestTimeout returns the default query expiry window.
func (cfg *Config) RequestTimeout() time.Duration { return cfg.requestTimeout }

// ConnOption represents a functional option for configuring a Config.
type ConnOption interface {
	apply(*Config) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (c *connOptFunc) apply(cfg *Config) error { return c.applyFunc(cfg) }

func newConnOptFunc(name string, f func(*Config) error) *connOptFunc {
	return &connOptFunc{name: name, applyFunc: f}
}

// WithEndpoint sets the WebSocket URL of the bridge service.
// The URL must use the ws or wss scheme.
//
// The default value is ws://localhost:8585.
func WithEndpoint(endpoint string) ConnOption {
	return newConnOptFunc("WithEndpoint", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		u, err := url.Parse(endpoint)
		if err != nil {
			return errors.New("invalid endpoint URL")
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return errors.New("endpoint scheme must be ws or wss")
		}
		if u.Host == "" {
			return errors.New("endpoint host is empty")
		}
		cfg.endpoint = endpoint

		return nil
	})
}

// WithAutoReconnect enables or disables automatic recovery after an unintended
// close. Disconnect never reconnects regardless of this setting.
//
// The default value is true.
func WithAutoReconnect(val bool) ConnOption {
	return newConnOptFunc("WithAutoReconnect", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		cfg.autoReconnect = val

		return nil
	})
}

// WithReconnectDelay sets the initial backoff delay and the backoff ceiling.
// Both must be positive and initial must not exceed max.
//
// The defaults are 1 second and 30 seconds.
func WithReconnectDelay(initial, max time.Duration) ConnOption {
	return newConnOptFunc("WithReconnectDelay", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if initial <= 0 || max <= 0 {
			return errors.New("reconnect delays must be positive")
		}
		if initial > max {
			return errors.New("initial reconnect delay exceeds the maximum")
		}
		cfg.reconnectInitialDelay = initial
		cfg.reconnectMaxDelay = max

		return nil
	})
}

// WithKeepaliveInterval sets the period between keepalive ping frames.
// The interval must be positive.
//
// The default value is 30 seconds.
func WithKeepaliveInterval(interval time.Duration) ConnOption {
	return newConnOptFunc("WithKeepaliveInterval", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if interval <= 0 {
			return errors.New("keepalive interval must be positive")
		}
		cfg.keepaliveInterval = interval

		return nil
	})
}

// WithRequestTimeout sets the default expiry window for correlated queries.
// The timeout must be positive.
//
// The default value is 10 seconds.
func WithRequestTimeout(timeout time.Duration) ConnOption {
	return newConnOptFunc("WithRequestTimeout", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if timeout <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = timeout

		return nil
	})
}

// WithDialTimeout bounds the WebSocket handshake of one open attempt.
// The timeout must be positive.
//
// The default value is 3 seconds.
func WithDialTimeout(timeout time.Duration) ConnOption {
	return newConnOptFunc("WithDialTimeout", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if timeout <= 0 {
			return errors.New("dial timeout must be positive")
		}
		cfg.dialTimeout = timeout

		return nil
	})
}

// WithLogger sets the logger for the connection.
//
// The default logger is the global logger instance.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		cfg.logger = l

		return nil
	})
}
