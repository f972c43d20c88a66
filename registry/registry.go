// Package registry announces grading workers in etcd.
//
// A worker registers a WorkerInfo under a lease on startup and keeps the
// lease alive while it runs, so a crashed worker disappears after the TTL.
// Submitters and dashboards discover or watch the workers of a kind.
package registry

import (
	"context"
	"fmt"
	"time"
)

// WorkerInfo describes a running grading worker.
type WorkerInfo struct {
	// Kind is the kind of work the worker consumes: "meeting" or "trip"
	Kind string `json:"kind"`

	// InstanceID is unique per worker process
	InstanceID string `json:"instance_id"`

	// Version is the build version of the worker
	Version string `json:"version"`

	// HealthEndpoint is the host:port of the worker's gRPC health service
	HealthEndpoint string `json:"health_endpoint"`

	// MetricsEndpoint is the host:port serving Prometheus metrics, if any
	MetricsEndpoint string `json:"metrics_endpoint,omitempty"`

	// Concurrency is the number of grading goroutines
	Concurrency int `json:"concurrency"`

	StartedAt time.Time `json:"started_at"`
}

// Validate checks the fields a registration needs.
func (w WorkerInfo) Validate() error {
	if w.Kind == "" {
		return fmt.Errorf("worker kind is required")
	}
	if w.InstanceID == "" {
		return fmt.Errorf("worker instance id is required")
	}
	return nil
}

// Registry registers and discovers workers.
type Registry interface {
	// Register adds the worker under a lease and keeps the lease alive in
	// the background. Registering the same InstanceID again replaces the
	// entry.
	Register(ctx context.Context, info WorkerInfo) error

	// Deregister revokes the worker's lease. Unknown workers are a no-op.
	Deregister(ctx context.Context, info WorkerInfo) error

	// Discover lists the registered workers of kind.
	Discover(ctx context.Context, kind string) ([]WorkerInfo, error)

	// Watch sends the current workers of kind, then the full list again on
	// every change, until ctx is done or the registry is closed.
	Watch(ctx context.Context, kind string) (<-chan []WorkerInfo, error)

	// Close stops keepalives and watches and closes the connection.
	Close() error
}

// Config holds etcd connection settings.
type Config struct {
	// Endpoints is the list of etcd endpoints, e.g. ["localhost:2379"]
	Endpoints []string `json:"endpoints" yaml:"endpoints"`

	// Namespace prefixes every key: /{namespace}/workers/{kind}/{instance-id}
	// Default: "itinerary"
	Namespace string `json:"namespace" yaml:"namespace"`

	// TTL is the lease time-to-live in seconds. Default: 30
	TTL int `json:"ttl" yaml:"ttl"`

	// DialTimeout bounds connection setup. Default: 5s
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout"`

	// TLS enables mutual TLS when set and Enabled
	TLS *TLSConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// TLSConfig holds client certificate paths for etcd.
type TLSConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file" yaml:"ca_file"`
}

func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = "itinerary"
	}
	if c.TTL <= 0 {
		c.TTL = 30
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	return c
}
