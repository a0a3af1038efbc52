package grpcauth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/reelstash/identity"
)

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	// Verify checks a bearer session token and returns the principal id
	// it asserts. Required.
	Verify identity.VerifyTokenFunc

	// RequireAuth when true rejects requests without a valid token.
	// When false, requests proceed but PrincipalIDFromContext returns
	// nothing for them.
	RequireAuth bool

	// PublicMethods is a set of method names that don't require auth.
	// Only used when RequireAuth is true.
	// Keys should be full method names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// NewInterceptorConfig returns a config that requires auth for all
// methods except the listed public ones.
func NewInterceptorConfig(verify identity.VerifyTokenFunc, publicMethods ...string) *InterceptorConfig {
	config := &InterceptorConfig{
		Verify:        verify,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that allows unauthenticated requests.
func OptionalAuthConfig(verify identity.VerifyTokenFunc) *InterceptorConfig {
	return &InterceptorConfig{
		Verify:        verify,
		RequireAuth:   false,
		PublicMethods: make(map[string]bool),
	}
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that verifies
// the bearer token from incoming metadata and attaches the principal id
// to the handler context.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		principalID, err := authenticate(ctx, config)
		if err == nil {
			ctx = identity.ContextWithPrincipalID(ctx, principalID)
		} else if config.RequireAuth && !config.PublicMethods[info.FullMethod] {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns a gRPC stream interceptor that verifies
// the bearer token from incoming metadata.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		principalID, err := authenticate(ss.Context(), config)
		if err == nil {
			ss = &authenticatedStream{ServerStream: ss, principalID: principalID}
		} else if config.RequireAuth && !config.PublicMethods[info.FullMethod] {
			return status.Error(codes.Unauthenticated, "authentication required")
		}
		return handler(srv, ss)
	}
}

func authenticate(ctx context.Context, config *InterceptorConfig) (string, error) {
	if config == nil || config.Verify == nil {
		return "", identity.ErrUnauthenticated
	}
	token, err := bearerFromIncoming(ctx)
	if err != nil {
		return "", err
	}
	principalID, err := config.Verify(token)
	if err != nil {
		return "", identity.ErrUnauthenticated
	}
	return principalID, nil
}

// authenticatedStream overrides Context to expose the principal id to
// stream handlers.
type authenticatedStream struct {
	grpc.ServerStream
	principalID string
}

func (s *authenticatedStream) Context() context.Context {
	return identity.ContextWithPrincipalID(s.ServerStream.Context(), s.principalID)
}
