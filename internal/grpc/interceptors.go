package grpcserver

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"droneDispatch/internal/auth"
	"droneDispatch/internal/metrics"
	"droneDispatch/internal/tracing"
)

// tracingInterceptor opens a server span per call.
func tracingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, span := tracing.Start(ctx, info.FullMethod, attribute.String("rpc.system", "grpc"))
		resp, err := handler(ctx, req)
		span.SetAttributes(attribute.String("rpc.grpc.status_code", status.Code(err).String()))
		tracing.End(span, err)
		return resp, err
	}
}

// metricsInterceptor counts calls by method and status code and logs failures.
func metricsInterceptor(m *metrics.MetricsRegistry, log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		code := status.Code(err)
		if m != nil {
			m.RPCRequestsTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
		}
		switch code {
		case codes.OK:
		case codes.Internal, codes.Unavailable, codes.DeadlineExceeded:
			log.Error("rpc failed", zap.String("method", info.FullMethod), zap.String("code", code.String()), zap.Error(err))
		default:
			log.Debug("rpc rejected", zap.String("method", info.FullMethod), zap.String("code", code.String()), zap.Error(err))
		}
		return resp, err
	}
}

// rateLimiter keeps one token bucket per authenticated user.
type rateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &rateLimiter{limit: rate.Limit(perSecond), burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (r *rateLimiter) get(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[key]; ok {
		return l
	}
	l := rate.NewLimiter(r.limit, r.burst)
	r.limiters[key] = l
	return l
}

// interceptor must run after authentication. Unauthenticated calls are not limited.
// A non-positive rate disables limiting.
func (r *rateLimiter) interceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if r.limit <= 0 {
			return handler(ctx, req)
		}
		p, ok := auth.FromContext(ctx)
		if ok && p != nil && !r.get(p.UserID).Allow() {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded for %s", p.UserID)
		}
		return handler(ctx, req)
	}
}
