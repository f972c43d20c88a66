package serve

import (
	"log/slog"
	"time"
)

// Option adjusts a Config before the server starts.
type Option func(*Config)

// WithPort sets the TCP port. Use 0 to pick a free port.
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithHost sets the bind interface.
func WithHost(host string) Option {
	return func(c *Config) {
		c.Host = host
	}
}

// WithGracefulShutdown sets how long GracefulStop waits for active RPCs.
func WithGracefulShutdown(timeout time.Duration) Option {
	return func(c *Config) {
		c.GracefulTimeout = timeout
	}
}

// WithTLS enables TLS with PEM certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(c *Config) {
		c.TLSCertFile = certFile
		c.TLSKeyFile = keyFile
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
