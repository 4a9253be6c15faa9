// Package transport hosts the gRPC server wrapper that binds a node's
// loopback listener and runs its handlers under a bounded worker pool, per
// spec §4.4. Adapted from the teacher's internal/server/server.go: same
// New/Start/Stop/GracefulStop shape, generalized message-size limits and
// an added semaphore interceptor standing in for the spec's explicit
// "bounded pool of worker tasks" requirement (the teacher leaves
// concurrency to gRPC's own stream scheduler; the spec asks for a visible
// cap).
package transport

import (
	"context"
	"fmt"
	"net"

	"dhtresearch/internal/logger"
	"dhtresearch/internal/telemetry/lookuptrace"
	"dhtresearch/internal/transport/rpc"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// Server wraps a gRPC server hosting the single DHT service.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	lgr        logger.Logger
}

// Options configures message-size caps and the handler concurrency bound.
type Options struct {
	MaxMessageBytes int
	MaxWorkers      int
	Tracing         bool
}

// New binds srv's handlers to a new *grpc.Server listening on lis.
func New(lis net.Listener, srv rpc.Server, opts Options, lgr logger.Logger) *Server {
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 10
	}

	interceptors := []grpc.UnaryServerInterceptor{semaphoreInterceptor(opts.MaxWorkers)}
	if opts.Tracing {
		interceptors = append(interceptors, lookuptrace.ServerInterceptor())
	}
	grpcOpts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(opts.MaxMessageBytes),
		grpc.MaxSendMsgSize(opts.MaxMessageBytes),
		grpc.ChainUnaryInterceptor(interceptors...),
	}
	if opts.Tracing {
		grpcOpts = append(grpcOpts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}

	gs := grpc.NewServer(grpcOpts...)
	rpc.RegisterServer(gs, srv)
	return &Server{grpcServer: gs, listener: lis, lgr: lgr}
}

// semaphoreInterceptor bounds the number of handler goroutines running
// concurrently to n, blocking additional RPCs until a slot frees up —
// the "bounded worker pool (≤10 workers per node)" of spec §4.4.
func semaphoreInterceptor(n int) grpc.UnaryServerInterceptor {
	sem := make(chan struct{}, n)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		defer func() { <-sem }()
		return handler(ctx, req)
	}
}

// Start runs the gRPC server and blocks until it stops.
func (s *Server) Start() error {
	if err := s.grpcServer.Serve(s.listener); err != nil {
		return fmt.Errorf("gRPC server stopped: %w", err)
	}
	return nil
}

// Stop immediately stops the server, dropping in-flight RPCs.
func (s *Server) Stop() { s.grpcServer.Stop() }

// GracefulStop waits for in-flight RPCs to complete before stopping.
func (s *Server) GracefulStop() { s.grpcServer.GracefulStop() }
