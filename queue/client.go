package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// HeartbeatTTL is how long a worker stays healthy after a heartbeat.
const HeartbeatTTL = 30 * time.Second

// Client defines the interface for interacting with the grading queues.
type Client interface {
	// Push adds a work item to the end of a queue (LPUSH).
	Push(ctx context.Context, queue string, item WorkItem) error

	// Pop removes and returns a work item from the front of a queue (BRPOP).
	// It returns nil without error when no item arrives within the pop
	// timeout, so callers can check their context between attempts.
	Pop(ctx context.Context, queue string) (*WorkItem, error)

	// Len returns the number of pending items of a queue.
	Len(ctx context.Context, queue string) (int64, error)

	// Publish sends a result to a pub/sub channel.
	Publish(ctx context.Context, channel string, result Result) error

	// Subscribe creates a subscription to a pub/sub channel.
	// Returns a channel that receives results until ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan Result, error)

	// Heartbeat marks a worker healthy for HeartbeatTTL.
	Heartbeat(ctx context.Context, workerID string) error

	// Healthy reports whether a worker sent a heartbeat within HeartbeatTTL.
	Healthy(ctx context.Context, workerID string) (bool, error)

	// GetWorkerCount returns the current worker count for a kind.
	GetWorkerCount(ctx context.Context, kind string) (int, error)

	// IncrementWorkerCount increments the worker count for a kind.
	IncrementWorkerCount(ctx context.Context, kind string) error

	// DecrementWorkerCount decrements the worker count for a kind.
	DecrementWorkerCount(ctx context.Context, kind string) error

	// Close closes the Redis connection.
	Close() error
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration

	// PopTimeout bounds a single BRPOP
	PopTimeout time.Duration
}

// RedisClient implements the Client interface using go-redis/v9.
type RedisClient struct {
	client     *redis.Client
	popTimeout time.Duration
}

// NewRedisClient creates a new Redis queue client with the given options.
func NewRedisClient(opts RedisOptions) (*RedisClient, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PopTimeout == 0 {
		opts.PopTimeout = time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client, popTimeout: opts.PopTimeout}, nil
}

// Push adds a work item to the end of a queue.
func (c *RedisClient) Push(ctx context.Context, queue string, item WorkItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal work item: %w", err)
	}

	if err := c.client.LPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", queue, err)
	}
	return nil
}

// Pop removes and returns a work item from the front of a queue.
func (c *RedisClient) Pop(ctx context.Context, queue string) (*WorkItem, error) {
	// BRPOP returns [queue_name, value] or redis.Nil on timeout
	result, err := c.client.BRPop(ctx, c.popTimeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue %s: %w", queue, err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var item WorkItem
	if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal work item: %w", err)
	}
	return &item, nil
}

// Len returns the number of pending items of a queue.
func (c *RedisClient) Len(ctx context.Context, queue string) (int64, error) {
	n, err := c.client.LLen(ctx, queue).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get length of queue %s: %w", queue, err)
	}
	return n, nil
}

// Publish sends a result to a pub/sub channel.
func (c *RedisClient) Publish(ctx context.Context, channel string, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe creates a subscription to a pub/sub channel. Messages that do
// not decode as a Result are dropped.
func (c *RedisClient) Subscribe(ctx context.Context, channel string) (<-chan Result, error) {
	pubsub := c.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}

	resultChan := make(chan Result)

	go func() {
		defer close(resultChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var result Result
				if err := json.Unmarshal([]byte(msg.Payload), &result); err != nil {
					continue
				}

				select {
				case resultChan <- result:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return resultChan, nil
}

// Heartbeat marks a worker healthy for HeartbeatTTL.
func (c *RedisClient) Heartbeat(ctx context.Context, workerID string) error {
	if err := c.client.Set(ctx, healthKey(workerID), "ok", HeartbeatTTL).Err(); err != nil {
		return fmt.Errorf("failed to set heartbeat for worker %s: %w", workerID, err)
	}
	return nil
}

// Healthy reports whether a worker sent a heartbeat within HeartbeatTTL.
func (c *RedisClient) Healthy(ctx context.Context, workerID string) (bool, error) {
	n, err := c.client.Exists(ctx, healthKey(workerID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check heartbeat of worker %s: %w", workerID, err)
	}
	return n == 1, nil
}

// GetWorkerCount returns the current worker count for a kind.
func (c *RedisClient) GetWorkerCount(ctx context.Context, kind string) (int, error) {
	countStr, err := c.client.Get(ctx, workersKey(kind)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get worker count for %s: %w", kind, err)
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		return 0, fmt.Errorf("invalid worker count value: %w", err)
	}
	return count, nil
}

// IncrementWorkerCount increments the worker count for a kind.
func (c *RedisClient) IncrementWorkerCount(ctx context.Context, kind string) error {
	if err := c.client.Incr(ctx, workersKey(kind)).Err(); err != nil {
		return fmt.Errorf("failed to increment worker count for %s: %w", kind, err)
	}
	return nil
}

// DecrementWorkerCount decrements the worker count for a kind.
func (c *RedisClient) DecrementWorkerCount(ctx context.Context, kind string) error {
	if err := c.client.Decr(ctx, workersKey(kind)).Err(); err != nil {
		return fmt.Errorf("failed to decrement worker count for %s: %w", kind, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// formatKeyName joins key parts with colons.
func formatKeyName(parts ...string) string {
	return strings.Join(parts, ":")
}
