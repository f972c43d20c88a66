package serve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.GracefulTimeout)
	assert.Empty(t, cfg.TLSCertFile)
}

func TestOptions(t *testing.T) {
	cfg := &Config{}
	for _, opt := range []Option{
		WithPort(9000),
		WithHost("127.0.0.1"),
		WithGracefulShutdown(time.Second),
		WithTLS("cert.pem", "key.pem"),
	} {
		opt(cfg)
	}
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, time.Second, cfg.GracefulTimeout)
	assert.Equal(t, "cert.pem", cfg.TLSCertFile)
	assert.Equal(t, "key.pem", cfg.TLSKeyFile)
}

func TestNewServer_BadTLS(t *testing.T) {
	_, err := NewServer(nil, WithHost("127.0.0.1"), WithPort(0), WithTLS("missing.pem", "missing.key"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load TLS credentials")
}

func healthCheck(t *testing.T, addr, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestServeHealth(t *testing.T) {
	srv, err := NewServer(nil, WithHost("127.0.0.1"), WithPort(0), WithGracefulShutdown(time.Second))
	require.NoError(t, err)
	assert.Greater(t, srv.Port(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, healthCheck(t, srv.Addr(), ""))

	srv.SetServing("meeting", true)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, healthCheck(t, srv.Addr(), "meeting"))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, healthCheck(t, srv.Addr(), ""))

	srv.SetServing("meeting", false)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, healthCheck(t, srv.Addr(), "meeting"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestStop(t *testing.T) {
	srv, err := NewServer(nil, WithHost("127.0.0.1"), WithPort(0))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	srv.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}
