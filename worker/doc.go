// Package worker grades queued examples.
//
// A worker pops WorkItems from the Redis list of its kind, grades each one
// with the grading package and publishes a queue.Result on the job's
// channel. Submitters use queue.Submit to fan a dataset out over any number
// of workers.
//
//	err := worker.Run(ctx, worker.Options{
//	    Kind:        queue.KindTrip,
//	    RedisURL:    "redis://localhost:6379",
//	    Concurrency: 8,
//	})
//
// While running, a worker
//   - sends a heartbeat so queue.Client.Healthy reports it,
//   - keeps the per-kind worker count in Redis,
//   - records Prometheus metrics from the metrics package,
//   - optionally registers in etcd and reports SERVING on a health server.
//
// Run returns once ctx is cancelled and in-flight items are published, or
// after ShutdownTimeout.
package worker
