// Package health checks the dependencies of plancheck before it starts work.
// It verifies the reachability of Redis and etcd and the presence of files.
package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Health states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Status is the outcome of one check, or of several combined.
type Status struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (s Status) IsHealthy() bool   { return s.Status == StatusHealthy }
func (s Status) IsDegraded() bool  { return s.Status == StatusDegraded }
func (s Status) IsUnhealthy() bool { return s.Status == StatusUnhealthy }

func healthy(msg string) Status {
	return Status{Status: StatusHealthy, Message: msg}
}

func degraded(msg string, details map[string]any) Status {
	return Status{Status: StatusDegraded, Message: msg, Details: details}
}

func unhealthy(msg string, details map[string]any) Status {
	return Status{Status: StatusUnhealthy, Message: msg, Details: details}
}

// NetworkCheck dials host:port over TCP.
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	status := health.NetworkCheck(ctx, "localhost", 6379)
func NetworkCheck(ctx context.Context, host string, port int) Status {
	if host == "" {
		return unhealthy("host cannot be empty", nil)
	}
	if port <= 0 || port > 65535 {
		return unhealthy(fmt.Sprintf("invalid port number: %d", port), map[string]any{"port": port})
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return unhealthy(fmt.Sprintf("failed to connect to %s", address), map[string]any{
			"host":  host,
			"port":  port,
			"error": err.Error(),
		})
	}
	conn.Close()

	return healthy(fmt.Sprintf("successfully connected to %s", address))
}

// EndpointCheck dials an address of the form host:port.
func EndpointCheck(ctx context.Context, endpoint string) Status {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return unhealthy(fmt.Sprintf("invalid endpoint %q", endpoint), map[string]any{"error": err.Error()})
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return unhealthy(fmt.Sprintf("invalid port in endpoint %q", endpoint), nil)
	}
	return NetworkCheck(ctx, host, port)
}

// RedisCheck dials the host of a redis:// or rediss:// URL. The port
// defaults to 6379.
func RedisCheck(ctx context.Context, redisURL string) Status {
	u, err := url.Parse(redisURL)
	if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
		return unhealthy(fmt.Sprintf("invalid Redis URL %q", redisURL), nil)
	}
	port := 6379
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return unhealthy(fmt.Sprintf("invalid Redis port %q", p), nil)
		}
	}
	return NetworkCheck(ctx, u.Hostname(), port)
}

// QuorumCheck dials every etcd endpoint. It is degraded when some but not
// all are reachable.
func QuorumCheck(ctx context.Context, endpoints []string) Status {
	if len(endpoints) == 0 {
		return unhealthy("no endpoints configured", nil)
	}
	var down []string
	for _, ep := range endpoints {
		if st := EndpointCheck(ctx, ep); !st.IsHealthy() {
			down = append(down, ep)
		}
	}
	switch {
	case len(down) == 0:
		return healthy(fmt.Sprintf("all %d endpoint(s) reachable", len(endpoints)))
	case len(down) < len(endpoints):
		return degraded(fmt.Sprintf("%d of %d endpoint(s) unreachable", len(down), len(endpoints)),
			map[string]any{"unreachable": down})
	default:
		return unhealthy("no endpoint reachable", map[string]any{"unreachable": down})
	}
}

// FileCheck verifies that a file or directory exists at path.
func FileCheck(path string) Status {
	if path == "" {
		return unhealthy("path cannot be empty", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return unhealthy(fmt.Sprintf("path '%s' does not exist", path), map[string]any{"path": path})
		}
		return unhealthy(fmt.Sprintf("failed to stat path '%s'", path), map[string]any{
			"path":  path,
			"error": err.Error(),
		})
	}
	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	return healthy(fmt.Sprintf("%s '%s' exists", kind, path))
}

// Combine aggregates statuses. Any unhealthy check makes the result
// unhealthy; otherwise any degraded check makes it degraded.
func Combine(checks ...Status) Status {
	if len(checks) == 0 {
		return healthy("no checks provided")
	}

	var failed, weak []string
	ok := 0
	for _, c := range checks {
		msg := c.Message
		if msg == "" {
			msg = "unnamed check"
		}
		switch c.Status {
		case StatusUnhealthy:
			failed = append(failed, msg)
		case StatusDegraded:
			weak = append(weak, msg)
		case StatusHealthy:
			ok++
		}
	}

	if len(failed) > 0 {
		return unhealthy(fmt.Sprintf("%d check(s) failed", len(failed)), map[string]any{
			"total":         len(checks),
			"unhealthy":     len(failed),
			"degraded":      len(weak),
			"healthy":       ok,
			"failed_checks": failed,
		})
	}
	if len(weak) > 0 {
		return degraded(fmt.Sprintf("%d check(s) degraded", len(weak)), map[string]any{
			"total":           len(checks),
			"degraded":        len(weak),
			"healthy":         ok,
			"degraded_checks": weak,
		})
	}
	return healthy(fmt.Sprintf("all %d check(s) passed", len(checks)))
}
