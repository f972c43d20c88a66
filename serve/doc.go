// Package serve runs the gRPC health endpoint of a grading worker.
//
// The server speaks the standard grpc.health.v1 protocol, so load
// balancers, Kubernetes liveness checks and health-check clients can query a worker
// without knowing anything else about it.
//
//	srv, err := serve.NewServer(nil, serve.WithPort(7070))
//	if err != nil {
//	    return err
//	}
//	srv.SetServing("meeting", true)
//	return srv.Serve(ctx)
//
// Serve returns when ctx is cancelled, after a graceful stop bounded by
// WithGracefulShutdown.
package serve
