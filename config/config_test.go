package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/itinerary/registry"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ITINERARY_REDIS_URL", "ITINERARY_POLICY", "ITINERARY_WORKER_KIND",
		"ITINERARY_METRICS_ADDR", "ITINERARY_LOG_LEVEL", "ITINERARY_LOG_FORMAT",
		"ITINERARY_REGISTRY_NAMESPACE", "ITINERARY_REGISTRY_ENDPOINTS",
		"ITINERARY_RATE_LIMIT", "ITINERARY_WORKER_CONCURRENCY",
		"ITINERARY_WORKER_HEALTH_PORT", "ITINERARY_MEETING_STEPS", "ITINERARY_TRIP_STEPS",
		"ITINERARY_OTLP_ENDPOINT", "ITINERARY_OTLP_INSECURE",
	} {
		t.Setenv(key, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 15, cfg.Refine.MeetingSteps)
	assert.Equal(t, 9, cfg.Refine.MultiMeetingSteps)
	assert.Equal(t, 5, cfg.Refine.Candidates)
	assert.Equal(t, 7, cfg.Refine.TripSteps)
	assert.Equal(t, "violations == 0", cfg.Refine.Policy)
	assert.Equal(t, "meeting", cfg.Worker.Kind)
	assert.Equal(t, 30*time.Second, cfg.Worker.GetShutdownTimeout())
	assert.Equal(t, 10*time.Second, cfg.Worker.GetHeartbeatInterval())
	assert.Equal(t, time.Second, cfg.Redis.GetPopTimeout())
}

func TestLoad_NoPath(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
refine:
  trip_steps: 3
  rate_limit: 2.5
  policy: "violations <= 1"
worker:
  kind: trip
  concurrency: 8
  heartbeat_interval: 5s
registry:
  endpoints: [etcd-0:2379]
  tls:
    enabled: true
    cert_file: /etc/etcd/client.crt
    key_file: /etc/etcd/client.key
    ca_file: /etc/etcd/ca.crt
log:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Refine.TripSteps)
	assert.Equal(t, 15, cfg.Refine.MeetingSteps, "unset fields keep defaults")
	assert.Equal(t, 2.5, cfg.Refine.RateLimit)
	assert.Equal(t, "trip", cfg.Worker.Kind)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Worker.GetHeartbeatInterval())
	reg := cfg.RegistryConfig()
	assert.Equal(t, []string{"etcd-0:2379"}, reg.Endpoints)
	require.NotNil(t, reg.TLS)
	assert.True(t, reg.TLS.Enabled)
	assert.Equal(t, "/etc/etcd/ca.crt", reg.TLS.CAFile)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	opts, err := cfg.RefineOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 2)
}

func TestLoad_Directory(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "itinerary.yml"), []byte("worker:\n  concurrency: 2\n"), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Worker.Concurrency)

	_, err = Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no itinerary.yaml or itinerary.yml found")
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("refine: [unclosed"), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ITINERARY_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("ITINERARY_WORKER_CONCURRENCY", "16")
	t.Setenv("ITINERARY_REGISTRY_ENDPOINTS", "a:2379, b:2379")
	t.Setenv("ITINERARY_RATE_LIMIT", "0.5")
	t.Setenv("ITINERARY_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("ITINERARY_OTLP_INSECURE", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	assert.Equal(t, 16, cfg.Worker.Concurrency)
	assert.Equal(t, []string{"a:2379", "b:2379"}, cfg.Registry.Endpoints)
	assert.Equal(t, 0.5, cfg.Refine.RateLimit)
	assert.Equal(t, TracingConfig{Endpoint: "collector:4317", Insecure: true}, cfg.Tracing)
}

func TestLoad_EnvOverrideInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("ITINERARY_WORKER_CONCURRENCY", "many")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ITINERARY_WORKER_CONCURRENCY")
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ITINERARY_METRICS_ADDR=:9464\n"), 0o600))
	// godotenv does not override variables that are already set.
	require.NoError(t, os.Unsetenv("ITINERARY_METRICS_ADDR"))
	t.Cleanup(func() { os.Unsetenv("ITINERARY_METRICS_ADDR") })

	cfg, err := Load("", envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":9464", cfg.Metrics.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero steps", func(c *Config) { c.Refine.TripSteps = 0 }, "refine.trip_steps must be positive"},
		{"bad kind", func(c *Config) { c.Worker.Kind = "flight" }, "worker.kind must be meeting or trip"},
		{"bad port", func(c *Config) { c.Worker.HealthPort = 70000 }, "worker.health_port out of range"},
		{"bad duration", func(c *Config) { c.Worker.ShutdownTimeout = "soon" }, "worker.shutdown_timeout"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad policy", func(c *Config) { c.Refine.Policy = "violations +" }, "refine.policy"},
		{"negative rate", func(c *Config) { c.Refine.RateLimit = -1 }, "refine.rate_limit"},
		{"incomplete tls", func(c *Config) { c.Registry.TLS = &registry.TLSConfig{Enabled: true, CertFile: "c"} }, "registry.tls"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDurationGettersFallBack(t *testing.T) {
	w := WorkerConfig{ShutdownTimeout: "nope"}
	assert.Equal(t, 30*time.Second, w.GetShutdownTimeout())
	assert.Equal(t, 10*time.Second, w.GetHeartbeatInterval())
}
