package auth

import (
	"context"
	"errors"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"

	"droneDispatch/models"
)

// Principal represents the authenticated caller from JWT.
type Principal struct {
	UserID     string
	Role       models.Role
	ProviderID string // set for provider staff and pilots
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// BearerFromMD returns the bearer token carried in gRPC metadata.
func BearerFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("missing metadata")
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return "", errors.New("missing authorization")
	}
	scheme, token, found := strings.Cut(vals[0], " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	return strings.TrimSpace(token), nil
}

// ParseFromMD extracts and validates a Bearer JWT from gRPC metadata and returns a Principal.
func ParseFromMD(ctx context.Context, secret string) (*Principal, error) {
	tokenStr, err := BearerFromMD(ctx)
	if err != nil {
		return nil, err
	}
	return parseJWT(tokenStr, secret)
}

type claims struct {
	Role       string `json:"role"`
	ProviderID string `json:"provider_id,omitempty"`
	jwt.RegisteredClaims
}

// parseJWT validates and extracts claims from a JWT token.
func parseJWT(tokenStr string, secret string) (*Principal, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	tok, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, err
	}
	c, _ := tok.Claims.(*claims)
	if c == nil || c.Subject == "" || c.Role == "" {
		return nil, errors.New("invalid claims")
	}
	p := &Principal{UserID: c.Subject, Role: models.Role(strings.ToLower(c.Role)), ProviderID: c.ProviderID}
	switch p.Role {
	case models.RoleConsumer, models.RoleAdmin:
	case models.RoleProvider, models.RolePilot:
		if p.ProviderID == "" {
			return nil, errors.New("provider_id claim required for provider staff")
		}
	default:
		return nil, errors.New("unknown role")
	}
	return p, nil
}
