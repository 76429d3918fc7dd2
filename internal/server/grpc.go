package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Pinger reports store reachability for the health service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GRPCServer exposes grpc.health.v1 and reflection. The overall status follows the store.
type GRPCServer struct {
	srv    *grpc.Server
	health *health.Server
	store  Pinger
	logger *slog.Logger
}

func NewGRPCServer(store Pinger, logger *slog.Logger) *GRPCServer {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogging(logger)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &GRPCServer{srv: srv, health: hs, store: store, logger: logger}
}

// Serve listens on addr until ctx is done, probing the store every interval.
func (g *GRPCServer) Serve(ctx context.Context, addr string, interval time.Duration) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return g.ServeListener(ctx, lis, interval)
}

func (g *GRPCServer) ServeListener(ctx context.Context, lis net.Listener, interval time.Duration) error {
	if g.store != nil && interval > 0 {
		go g.watchStore(ctx, interval)
	}
	go func() {
		<-ctx.Done()
		g.health.Shutdown()
		g.srv.GracefulStop()
	}()
	g.logger.Info("grpc.listen", "addr", lis.Addr().String())
	if err := g.srv.Serve(lis); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (g *GRPCServer) watchStore(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	last := healthpb.HealthCheckResponse_SERVING
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := g.store.Ping(pingCtx)
		cancel()

		next := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			next = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if next != last {
			g.logger.Warn("grpc.health.changed", "status", next.String(), "error", err)
			last = next
		}
		g.health.SetServingStatus("", next)
	}
}

func unaryLogging(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc.request",
			"method", info.FullMethod,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
