package grpcserver

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"droneDispatch/internal/auth"
	"droneDispatch/internal/config"
	"droneDispatch/internal/metrics"
)

const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	healthWatchMethod = "/grpc.health.v1.Health/Watch"
)

// NewGRPCServer builds a grpc.Server carrying DispatchService and the health service.
// Interceptors run in order: tracing, metrics, authentication, rate limiting.
func NewGRPCServer(cfg *config.Config, s *Server, m *metrics.MetricsRegistry, log *zap.Logger) *grpc.Server {
	if log == nil {
		log = zap.NewNop()
	}
	limiter := newRateLimiter(cfg.GRPC.RateLimit, cfg.GRPC.RateBurst)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		tracingInterceptor(),
		metricsInterceptor(m, log),
		auth.NewUnaryAuthInterceptor(cfg.Auth.JWTSecret, healthCheckMethod, healthWatchMethod),
		limiter.interceptor(),
	))
	Register(gs, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs
}

// StartGRPC starts the gRPC server on the configured address and returns a shutdown function.
func StartGRPC(cfg *config.Config, s *Server, m *metrics.MetricsRegistry, log *zap.Logger) (func(context.Context) error, error) {
	if cfg == nil {
		panic("config is required")
	}

	addr := cfg.GRPC.Address
	if addr == "" {
		addr = ":50051"
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := NewGRPCServer(cfg, s, m, log)
	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Error("grpc serve", zap.Error(err))
		}
	}()

	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}, nil
}
