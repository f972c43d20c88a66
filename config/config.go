// Package config loads itinerary.yaml, .env files and ITINERARY_*
// environment overrides.
//
// Precedence, highest first: environment variables (including those set by
// .env files), the YAML file, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/itinerary/policy"
	"github.com/zero-day-ai/itinerary/refine"
	"github.com/zero-day-ai/itinerary/registry"
)

// FileNames are searched, in order, when Load is given a directory.
var FileNames = []string{"itinerary.yaml", "itinerary.yml"}

// Config is the complete runtime configuration.
type Config struct {
	Refine   RefineConfig   `yaml:"refine"`
	Redis    RedisConfig    `yaml:"redis"`
	Registry RegistryConfig `yaml:"registry"`
	Worker   WorkerConfig   `yaml:"worker"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Log      LogConfig      `yaml:"log"`
}

// RefineConfig sets refinement budgets, pacing and the acceptance policy.
type RefineConfig struct {
	MeetingSteps      int `yaml:"meeting_steps,omitempty"`
	MultiMeetingSteps int `yaml:"multi_meeting_steps,omitempty"`
	Candidates        int `yaml:"candidates,omitempty"`
	TripSteps         int `yaml:"trip_steps,omitempty"`

	// RateLimit is generator calls per second; 0 disables pacing.
	RateLimit float64 `yaml:"rate_limit,omitempty"`
	Burst     int     `yaml:"burst,omitempty"`

	// Policy is a CEL acceptance expression.
	Policy string `yaml:"policy,omitempty"`
}

// RedisConfig locates the work queues.
type RedisConfig struct {
	URL string `yaml:"url,omitempty"`

	// PopTimeout bounds one blocking pop, e.g. "1s".
	PopTimeout string `yaml:"pop_timeout,omitempty"`
}

// RegistryConfig locates etcd. Empty Endpoints disables registration.
type RegistryConfig struct {
	Endpoints []string `yaml:"endpoints,omitempty"`
	Namespace string   `yaml:"namespace,omitempty"`
	TTL       int      `yaml:"ttl,omitempty"`

	// TLS enables mutual TLS to etcd when Enabled.
	TLS *registry.TLSConfig `yaml:"tls,omitempty"`
}

// WorkerConfig tunes the grading worker.
type WorkerConfig struct {
	// Kind is "meeting" or "trip".
	Kind string `yaml:"kind,omitempty"`

	// Concurrency is the number of grading goroutines. Default: 4
	Concurrency int `yaml:"concurrency,omitempty"`

	// HealthPort is the gRPC health port. Default: 7070
	HealthPort int `yaml:"health_port,omitempty"`

	// ShutdownTimeout, e.g. "30s". Default: 30s
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty"`

	// HeartbeatInterval, e.g. "10s". Default: 10s
	HeartbeatInterval string `yaml:"heartbeat_interval,omitempty"`
}

// MetricsConfig exposes Prometheus metrics. Empty Addr disables them.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// TracingConfig exports spans over OTLP/gRPC. Empty Endpoint disables
// tracing.
type TracingConfig struct {
	// Endpoint is the collector host:port, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure,omitempty"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level,omitempty"`

	// Format is text or json. Default: text
	Format string `yaml:"format,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Refine: RefineConfig{
			MeetingSteps:      refine.DefaultMeetingSteps,
			MultiMeetingSteps: refine.DefaultMultiMeetingSteps,
			Candidates:        refine.DefaultMultiCandidates,
			TripSteps:         refine.DefaultTripSteps,
			Burst:             1,
			Policy:            policy.Default,
		},
		Redis: RedisConfig{URL: "redis://localhost:6379", PopTimeout: "1s"},
		Registry: RegistryConfig{
			Namespace: "itinerary",
			TTL:       30,
		},
		Worker: WorkerConfig{
			Kind:              "meeting",
			Concurrency:       4,
			HealthPort:        7070,
			ShutdownTimeout:   "30s",
			HeartbeatInterval: "10s",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. path may be a file, a directory holding
// one of FileNames, or empty for defaults only. envFiles are loaded with
// godotenv before overrides are read; missing env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := resolve(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", file, err)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolve(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat config path: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range FileNames {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no %s found in %s", strings.Join(FileNames, " or "), path)
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// applyEnv overrides fields from ITINERARY_* variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("ITINERARY_REDIS_URL", &c.Redis.URL)
	str("ITINERARY_POLICY", &c.Refine.Policy)
	str("ITINERARY_WORKER_KIND", &c.Worker.Kind)
	str("ITINERARY_METRICS_ADDR", &c.Metrics.Addr)
	str("ITINERARY_LOG_LEVEL", &c.Log.Level)
	str("ITINERARY_LOG_FORMAT", &c.Log.Format)
	str("ITINERARY_REGISTRY_NAMESPACE", &c.Registry.Namespace)
	str("ITINERARY_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	if v := getenv("ITINERARY_OTLP_INSECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ITINERARY_OTLP_INSECURE: %w", err)
		}
		c.Tracing.Insecure = b
	}

	if v := getenv(registry.EnvEndpoints); v != "" {
		c.Registry.Endpoints = registry.ParseEndpoints(v)
	}
	if v := getenv("ITINERARY_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ITINERARY_RATE_LIMIT: %w", err)
		}
		c.Refine.RateLimit = f
	}

	for key, dst := range map[string]*int{
		"ITINERARY_WORKER_CONCURRENCY": &c.Worker.Concurrency,
		"ITINERARY_WORKER_HEALTH_PORT": &c.Worker.HealthPort,
		"ITINERARY_MEETING_STEPS":      &c.Refine.MeetingSteps,
		"ITINERARY_TRIP_STEPS":         &c.Refine.TripSteps,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks ranges and that the policy compiles.
func (c *Config) Validate() error {
	var errs []error
	for name, v := range map[string]int{
		"refine.meeting_steps":       c.Refine.MeetingSteps,
		"refine.multi_meeting_steps": c.Refine.MultiMeetingSteps,
		"refine.candidates":          c.Refine.Candidates,
		"refine.trip_steps":          c.Refine.TripSteps,
		"worker.concurrency":         c.Worker.Concurrency,
	} {
		if v < 1 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if c.Refine.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("refine.rate_limit must not be negative"))
	}
	if c.Worker.Kind != "meeting" && c.Worker.Kind != "trip" {
		errs = append(errs, fmt.Errorf("worker.kind must be meeting or trip, got %q", c.Worker.Kind))
	}
	if c.Worker.HealthPort < 0 || c.Worker.HealthPort > 65535 {
		errs = append(errs, fmt.Errorf("worker.health_port out of range: %d", c.Worker.HealthPort))
	}
	for name, d := range map[string]string{
		"redis.pop_timeout":         c.Redis.PopTimeout,
		"worker.shutdown_timeout":   c.Worker.ShutdownTimeout,
		"worker.heartbeat_interval": c.Worker.HeartbeatInterval,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if t := c.Registry.TLS; t != nil && t.Enabled && (t.CertFile == "" || t.KeyFile == "" || t.CAFile == "") {
		errs = append(errs, fmt.Errorf("registry.tls: cert_file, key_file and ca_file are required when enabled"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "" && f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", f))
	}
	if _, err := policy.Compile(c.Refine.Policy); err != nil {
		errs = append(errs, fmt.Errorf("refine.policy: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Level parses Log.Level.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Logger builds the slog logger described by Log.
func (c *Config) Logger() *slog.Logger {
	lvl, _ := c.Level()
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// RegistryConfig converts the etcd section.
func (c *Config) RegistryConfig() registry.Config {
	return registry.Config{
		Endpoints: c.Registry.Endpoints,
		Namespace: c.Registry.Namespace,
		TTL:       c.Registry.TTL,
		TLS:       c.Registry.TLS,
	}
}

// GetPopTimeout returns redis.pop_timeout, or 1s when unset.
func (r RedisConfig) GetPopTimeout() time.Duration {
	return parseDuration(r.PopTimeout, time.Second)
}

// GetShutdownTimeout returns the shutdown timeout, or 30s when unset.
func (w WorkerConfig) GetShutdownTimeout() time.Duration {
	return parseDuration(w.ShutdownTimeout, 30*time.Second)
}

// GetHeartbeatInterval returns the heartbeat interval, or 10s when unset.
func (w WorkerConfig) GetHeartbeatInterval() time.Duration {
	return parseDuration(w.HeartbeatInterval, 10*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// RefineOptions returns the loop options for pacing and policy. The policy
// was checked by Validate.
func (c *Config) RefineOptions() ([]refine.Option, error) {
	p, err := policy.Compile(c.Refine.Policy)
	if err != nil {
		return nil, err
	}
	opts := []refine.Option{refine.WithPolicy(p)}
	if c.Refine.RateLimit > 0 {
		opts = append(opts, refine.WithRateLimit(c.Refine.RateLimit, c.Refine.Burst))
	}
	return opts, nil
}
