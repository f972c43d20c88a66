package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zero-day-ai/itinerary/dataset"
	"github.com/zero-day-ai/itinerary/grading"
	"github.com/zero-day-ai/itinerary/metrics"
	"github.com/zero-day-ai/itinerary/queue"
	"github.com/zero-day-ai/itinerary/registry"
	"github.com/zero-day-ai/itinerary/serve"
)

// Options configures the worker behavior.
type Options struct {
	// Kind selects the queue: queue.KindMeeting or queue.KindTrip.
	Kind string

	// Client is the queue connection. If nil, one is opened from RedisURL
	// and closed when Run returns.
	Client queue.Client

	// RedisURL is used when Client is nil.
	// Default: redis://localhost:6379
	RedisURL string

	// Concurrency is the number of worker goroutines.
	// Default: 4
	Concurrency int

	// ShutdownTimeout bounds the wait for in-flight items after ctx ends.
	// Default: 30s
	ShutdownTimeout time.Duration

	// HeartbeatInterval is the period of health heartbeats.
	// Default: 10s
	HeartbeatInterval time.Duration

	// Registry, if set, announces the worker for discovery.
	Registry registry.Registry

	// Health, if set, reports the worker's kind SERVING while Run is active.
	Health *serve.Server

	// MetricsEndpoint is advertised in the registry, if metrics are served.
	MetricsEndpoint string

	// Version is advertised in the registry.
	Version string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.RedisURL == "" {
		o.RedisURL = "redis://localhost:6379"
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 30 * time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Run consumes the queue of opts.Kind until ctx is cancelled. Each item is
// graded and its Result published to the job's channel. On cancellation Run
// waits up to ShutdownTimeout for in-flight items.
func Run(ctx context.Context, opts Options) error {
	opts = opts.withDefaults()
	if opts.Kind != queue.KindMeeting && opts.Kind != queue.KindTrip {
		return fmt.Errorf("unknown worker kind %q", opts.Kind)
	}

	workerID := generateWorkerID()
	logger := opts.Logger.With("kind", opts.Kind, "worker_id", workerID)
	logger.Info("worker starting", "concurrency", opts.Concurrency)

	client := opts.Client
	if client == nil {
		rc, err := queue.NewRedisClient(queue.RedisOptions{URL: opts.RedisURL})
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer rc.Close()
		client = rc
	}

	metrics.RegisterDefault()

	if err := client.IncrementWorkerCount(ctx, opts.Kind); err != nil {
		logger.Error("failed to increment worker count", "error", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.DecrementWorkerCount(cleanupCtx, opts.Kind); err != nil {
			logger.Error("failed to decrement worker count", "error", err)
		}
	}()

	if opts.Registry != nil {
		info := registry.WorkerInfo{
			Kind:            opts.Kind,
			InstanceID:      workerID,
			Version:         opts.Version,
			MetricsEndpoint: opts.MetricsEndpoint,
			Concurrency:     opts.Concurrency,
			StartedAt:       time.Now(),
		}
		if opts.Health != nil {
			info.HealthEndpoint = opts.Health.Addr()
		}
		if err := opts.Registry.Register(ctx, info); err != nil {
			return fmt.Errorf("failed to register worker: %w", err)
		}
		defer func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := opts.Registry.Deregister(cleanupCtx, info); err != nil {
				logger.Error("failed to deregister worker", "error", err)
			}
		}()
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go runHeartbeat(heartbeatCtx, client, workerID, opts.HeartbeatInterval, logger)

	if opts.Health != nil {
		opts.Health.SetServing(opts.Kind, true)
		defer opts.Health.SetServing(opts.Kind, false)
	}

	var wg sync.WaitGroup
	queueName := queue.QueueName(opts.Kind)
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func(workerNum int) {
			defer wg.Done()
			workerLoop(ctx, workerNum, client, queueName, workerID, logger)
		}(i)
	}
	logger.Info("worker started", "workers", opts.Concurrency, "queue", queueName)

	<-ctx.Done()
	logger.Info("context done, initiating graceful shutdown")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("worker shutdown complete")
	case <-time.After(opts.ShutdownTimeout):
		logger.Warn("worker shutdown timeout exceeded", "timeout", opts.ShutdownTimeout)
	}
	return nil
}

// runHeartbeat marks the worker healthy every interval until ctx ends.
func runHeartbeat(ctx context.Context, client queue.Client, workerID string, interval time.Duration, logger *slog.Logger) {
	if err := client.Heartbeat(ctx, workerID); err != nil {
		logger.Debug("heartbeat failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Heartbeat failures are transient; the TTL covers a missed beat.
			if err := client.Heartbeat(ctx, workerID); err != nil {
				logger.Debug("heartbeat failed", "error", err)
			}
		}
	}
}

func workerLoop(ctx context.Context, workerNum int, client queue.Client, queueName, workerID string, logger *slog.Logger) {
	logger = logger.With("worker_num", workerNum)
	logger.Debug("worker loop started", "queue", queueName)

	for {
		if ctx.Err() != nil {
			logger.Debug("worker loop stopped")
			return
		}

		item, err := client.Pop(ctx, queueName)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to pop work item", "error", err)
			continue
		}
		if item == nil {
			continue
		}

		logger.Debug("received work item", "job_id", item.JobID, "index", item.Index, "total", item.Total)

		result := processWorkItem(*item, workerID, logger)

		// Results are published even after ctx ends so submitters are not
		// left waiting on an item that was already graded.
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := client.Publish(pubCtx, queue.ResultChannel(item.JobID), result); err != nil {
			logger.Error("failed to publish result", "job_id", item.JobID, "error", err)
		}
		cancel()
	}
}

// processWorkItem grades one item. It always returns a Result; failures are
// reported in Result.Error.
func processWorkItem(item queue.WorkItem, workerID string, logger *slog.Logger) queue.Result {
	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	start := time.Now()
	metrics.QueueWait.WithLabelValues(item.Kind).Observe(item.Age().Seconds())

	result := queue.Result{
		JobID:     item.JobID,
		Index:     item.Index,
		WorkerID:  workerID,
		StartedAt: start.UnixMilli(),
	}

	grade, err := gradeItem(item)
	result.CompletedAt = time.Now().UnixMilli()
	metrics.GradeDuration.WithLabelValues(item.Kind).Observe(time.Since(start).Seconds())

	if err != nil {
		result.Grade = grading.Grade{ID: item.ExampleID}
		result.Error = err.Error()
		metrics.WorkItems.WithLabelValues(item.Kind, metrics.OutcomeError).Inc()
		logger.Error("grading failed", "job_id", item.JobID, "index", item.Index, "error", err)
		return result
	}

	result.Grade = grade
	outcome := metrics.OutcomeIncorrect
	if grade.Correct {
		outcome = metrics.OutcomeCorrect
	}
	metrics.WorkItems.WithLabelValues(item.Kind, outcome).Inc()
	metrics.Violations.WithLabelValues(item.Kind).Observe(float64(len(grade.Violations)))

	logger.Info("work item graded",
		"job_id", item.JobID,
		"index", item.Index,
		"example_id", item.ExampleID,
		"correct", grade.Correct,
		"duration_ms", result.CompletedAt-result.StartedAt,
	)
	return result
}

func gradeItem(item queue.WorkItem) (grading.Grade, error) {
	if err := item.IsValid(); err != nil {
		return grading.Grade{}, fmt.Errorf("invalid work item: %w", err)
	}

	switch item.Kind {
	case queue.KindMeeting:
		var ex dataset.MeetingExample
		if err := json.Unmarshal(item.Example, &ex); err != nil {
			return grading.Grade{}, fmt.Errorf("failed to decode meeting example: %w", err)
		}
		ex.ID = item.ExampleID
		return grading.GradeMeeting(&ex)
	case queue.KindTrip:
		var ex dataset.TripExample
		if err := json.Unmarshal(item.Example, &ex); err != nil {
			return grading.Grade{}, fmt.Errorf("failed to decode trip example: %w", err)
		}
		ex.ID = item.ExampleID
		return grading.GradeTrip(&ex)
	}
	return grading.Grade{}, fmt.Errorf("unknown kind %q", item.Kind)
}

// generateWorkerID returns hostname-pid-<uuid prefix>.
func generateWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])
}
