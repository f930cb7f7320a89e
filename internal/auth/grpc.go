package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"droneDispatch/models"
	"droneDispatch/repository"
)

// NewUnaryAuthInterceptor returns a gRPC unary interceptor that extracts and validates
// a Bearer JWT from incoming metadata and injects the Principal into the context.
// Methods listed in allowUnauthenticated will bypass authentication (e.g., health checks).
func NewUnaryAuthInterceptor(secret string, allowUnauthenticated ...string) grpc.UnaryServerInterceptor {
	allow := make(map[string]struct{}, len(allowUnauthenticated))
	for _, m := range allowUnauthenticated {
		allow[strings.TrimSpace(m)] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		p, err := ParseFromMD(ctx, secret)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "auth error: %v", err)
		}
		return handler(WithPrincipal(ctx, p), req)
	}
}

// RequirePrincipal ensures a principal is present in context.
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok || p == nil {
		return nil, status.Error(codes.Unauthenticated, "missing principal")
	}
	return p, nil
}

// RequireRole ensures the principal has one of roles.
func RequireRole(ctx context.Context, roles ...models.Role) (*Principal, error) {
	p, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if p.Role == r {
			return p, nil
		}
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return nil, status.Errorf(codes.PermissionDenied, "only %s can perform this action", strings.Join(names, " or "))
}

// RequireProvider ensures the caller acts for a provider and returns that provider.
func RequireProvider(ctx context.Context) (*Principal, error) {
	return RequireRole(ctx, models.RoleProvider)
}

// RequirePilot ensures the caller is a pilot.
func RequirePilot(ctx context.Context) (*Principal, error) {
	return RequireRole(ctx, models.RolePilot)
}

// RequireZoneManager allows providers, and admins whose stored role is admin. The
// lookup prevents a forged admin claim from managing airspace.
func RequireZoneManager(ctx context.Context, users repository.UserRepositoryI) (*Principal, error) {
	p, err := RequireRole(ctx, models.RoleProvider, models.RoleAdmin)
	if err != nil || p.Role == models.RoleProvider {
		return p, err
	}
	if users == nil {
		return nil, status.Error(codes.Internal, "users repository not configured")
	}
	u, err := users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get user: %v", err)
	}
	if u == nil || u.Role != models.RoleAdmin {
		return nil, status.Error(codes.PermissionDenied, "only admin can perform this action")
	}
	return p, nil
}
