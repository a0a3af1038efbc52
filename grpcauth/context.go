// Package grpcauth carries bearer-token authentication across gRPC
// boundaries. Interceptors verify the session token from incoming
// metadata and attach the principal id to the handler context; client
// helpers forward a token on outgoing calls.
package grpcauth

import (
	"context"

	"google.golang.org/grpc/metadata"

	"github.com/reelstash/identity"
)

// MetadataKeyAuthorization is the gRPC metadata key carrying the bearer
// session token, mirroring the HTTP Authorization header.
const MetadataKeyAuthorization = "authorization"

// PrincipalIDFromContext returns the authenticated principal id set by
// one of the interceptors, if any.
func PrincipalIDFromContext(ctx context.Context) (string, bool) {
	return identity.PrincipalIDFromContext(ctx)
}

// IsAuthenticated reports whether the context carries an authenticated
// principal.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := identity.PrincipalIDFromContext(ctx)
	return ok
}

// TokenToOutgoingContext attaches a session token to an outgoing call's
// metadata as a bearer credential.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, MetadataKeyAuthorization, "Bearer "+token)
}

// bearerFromIncoming pulls the bearer token out of incoming metadata.
func bearerFromIncoming(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", identity.ErrUnauthenticated
	}
	values := md.Get(MetadataKeyAuthorization)
	if len(values) == 0 {
		return "", identity.ErrUnauthenticated
	}
	return identity.BearerToken(values[0])
}
