package scanner

import (
	"github.com/scanbridge/go-scanbridge/logger"
	"github.com/scanbridge/go-scanbridge/transport"
)

type config struct {
	autoConnect bool
	logger      logger.Logger
	connOpts    []transport.ConnOption
}

// Option represents a functional option for configuring a Client.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithAutoConnect enables or disables the asynchronous initial open scheduled
// during construction.
//
// The default value is true.
func WithAutoConnect(val bool) Option {
	return optFunc(func(cfg *config) error {
		cfg.autoConnect = val
		return nil
	})
}

// WithEndpoint sets the WebSocket URL of the bridge service.
//
// The default value is ws://localhost:8585.
func WithEndpoint(endpoint string) Option {
	return optFunc(func(cfg *config) error {
		cfg.connOpts = append(cfg.connOpts, transport.WithEndpoint(endpoint))
		return nil
	})
}

// WithLogger sets the logger for the client and its transport.
//
// The default logger is the global logger instance.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		cfg.logger = l
		return nil
	})
}

// WithConnOptions forwards transport-level options such as
// transport.WithReconnectDelay or transport.WithKeepaliveInterval.
func WithConnOptions(opts ...transport.ConnOption) Option {
	return optFunc(func(cfg *config) error {
		cfg.connOpts = append(cfg.connOpts, opts...)
		return nil
	})
}
