package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/itinerary/metrics"
	"github.com/zero-day-ai/itinerary/queue"
	"github.com/zero-day-ai/itinerary/registry"
	"github.com/zero-day-ai/itinerary/serve"
	"github.com/zero-day-ai/itinerary/worker"
)

var (
	workerKind        string
	workerConcurrency int
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a grading worker",
	Long: `Consume the Redis queue of one kind and publish a grade per work item.

The worker serves gRPC health on worker.health_port, Prometheus metrics on
metrics.addr when set, and registers in etcd when registry endpoints are
configured. It stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if workerKind != "" {
			cfg.Worker.Kind = workerKind
		}
		if workerConcurrency > 0 {
			cfg.Worker.Concurrency = workerConcurrency
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger := slog.Default()

		ctx, cancel := signalContext()
		defer cancel()

		for _, c := range preflight(ctx, cfg, nil) {
			if !c.IsHealthy() {
				logger.Warn("dependency check failed", "dependency", c.Name, "status", c.Status.Status, "message", c.Message)
			}
		}

		healthSrv, err := serve.NewServer(nil,
			serve.WithPort(cfg.Worker.HealthPort),
			serve.WithGracefulShutdown(cfg.Worker.GetShutdownTimeout()),
			serve.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		healthDone := make(chan error, 1)
		go func() { healthDone <- healthSrv.Serve(ctx) }()

		if cfg.Metrics.Addr != "" {
			stop := serveMetrics(cfg.Metrics.Addr, logger)
			defer stop()
		}

		var reg registry.Registry
		if len(cfg.Registry.Endpoints) > 0 {
			client, err := registry.NewClient(cfg.RegistryConfig())
			if err != nil {
				return err
			}
			defer client.Close()
			reg = client
		}

		err = worker.Run(ctx, worker.Options{
			Kind:              cfg.Worker.Kind,
			RedisURL:          cfg.Redis.URL,
			Concurrency:       cfg.Worker.Concurrency,
			ShutdownTimeout:   cfg.Worker.GetShutdownTimeout(),
			HeartbeatInterval: cfg.Worker.GetHeartbeatInterval(),
			Registry:          reg,
			Health:            healthSrv,
			MetricsEndpoint:   cfg.Metrics.Addr,
			Version:           rootCmd.Version,
			Logger:            logger,
		})
		cancel()
		if herr := <-healthDone; herr != nil {
			err = errors.Join(err, herr)
		}
		return err
	},
}

func init() {
	workerCmd.Flags().StringVar(&workerKind, "kind", "", "Queue to consume: meeting or trip (overrides worker.kind)")
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "Grading goroutines (overrides worker.concurrency)")
}

// serveMetrics exposes /metrics on addr and returns a shutdown func.
func serveMetrics(addr string, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

var workersWatch bool

var workersCmd = &cobra.Command{
	Use:   "workers [meeting|trip]",
	Short: "List registered workers",
	Long: `List the workers registered in etcd, of one kind or of both.

The HEARTBEAT column shows whether the worker refreshed its Redis heartbeat
recently. With --watch the list is printed again on every registry change
until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.Registry.Endpoints) == 0 {
			return fmt.Errorf("no registry endpoints configured: set registry.endpoints or %s", registry.EnvEndpoints)
		}

		kinds := []string{queue.KindMeeting, queue.KindTrip}
		if len(args) == 1 {
			if err := kindArg(cmd, args); err != nil {
				return err
			}
			kinds = args
		}

		client, err := registry.NewClient(cfg.RegistryConfig())
		if err != nil {
			return err
		}
		defer client.Close()

		var beats heartbeats
		if rc, err := queue.NewRedisClient(queue.RedisOptions{URL: cfg.Redis.URL}); err != nil {
			slog.Warn("heartbeats unavailable", "error", err)
		} else {
			defer rc.Close()
			beats = rc
		}

		out := cmd.OutOrStdout()
		if workersWatch {
			ctx, cancel := signalContext()
			defer cancel()
			return watchWorkers(ctx, client, kinds, func(all []registry.WorkerInfo) {
				printWorkers(ctx, out, beats, all)
			})
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		var all []registry.WorkerInfo
		for _, kind := range kinds {
			ws, err := client.Discover(ctx, kind)
			if err != nil {
				return err
			}
			all = append(all, ws...)
		}

		if jsonOutput {
			return writeJSON(out, all)
		}
		printWorkers(ctx, out, beats, all)
		return nil
	},
}

func init() {
	workersCmd.Flags().BoolVar(&workersWatch, "watch", false, "Print the list again on every registry change")
}

// heartbeats reports whether a worker refreshed its heartbeat recently.
type heartbeats interface {
	Healthy(ctx context.Context, workerID string) (bool, error)
}

type workerWatcher interface {
	Watch(ctx context.Context, kind string) (<-chan []registry.WorkerInfo, error)
}

// watchWorkers calls render with the workers of all kinds, in kinds order,
// after every change of any kind. It returns nil when ctx ends.
func watchWorkers(ctx context.Context, w workerWatcher, kinds []string, render func([]registry.WorkerInfo)) error {
	type update struct {
		kind    string
		workers []registry.WorkerInfo
	}
	updates := make(chan update)
	var wg sync.WaitGroup
	for _, kind := range kinds {
		ch, err := w.Watch(ctx, kind)
		if err != nil {
			return fmt.Errorf("failed to watch %s workers: %w", kind, err)
		}
		wg.Add(1)
		go func(kind string) {
			defer wg.Done()
			for ws := range ch {
				select {
				case updates <- update{kind, ws}:
				case <-ctx.Done():
					return
				}
			}
		}(kind)
	}
	go func() {
		wg.Wait()
		close(updates)
	}()

	latest := make(map[string][]registry.WorkerInfo, len(kinds))
	for u := range updates {
		latest[u.kind] = u.workers
		var all []registry.WorkerInfo
		for _, kind := range kinds {
			all = append(all, latest[kind]...)
		}
		render(all)
	}
	return nil
}

// printWorkers renders workers as a table. beats may be nil.
func printWorkers(ctx context.Context, w io.Writer, beats heartbeats, all []registry.WorkerInfo) {
	if jsonOutput {
		_ = writeJSON(w, all)
		return
	}
	if len(all) == 0 {
		PrintWarning(w, "no workers registered")
		return
	}
	rows := make([][]string, 0, len(all))
	for _, wi := range all {
		rows = append(rows, []string{
			wi.Kind, wi.InstanceID, wi.Version, wi.HealthEndpoint,
			strconv.Itoa(wi.Concurrency), time.Since(wi.StartedAt).Round(time.Second).String(),
			heartbeatState(ctx, beats, wi.InstanceID),
		})
	}
	PrintTable(w, []string{"KIND", "INSTANCE", "VERSION", "HEALTH", "CONCURRENCY", "UPTIME", "HEARTBEAT"}, rows)
}

func heartbeatState(ctx context.Context, beats heartbeats, id string) string {
	if beats == nil {
		return "unknown"
	}
	ok, err := beats.Healthy(ctx, id)
	switch {
	case err != nil:
		return "unknown"
	case ok:
		return "alive"
	default:
		return "stale"
	}
}
