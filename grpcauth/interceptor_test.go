package grpcauth_test

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/reelstash/identity"
	"github.com/reelstash/identity/grpcauth"
)

const testSigningKey = "test-signing-key-0123456789"

func testIssuer(t *testing.T) *identity.SessionIssuer {
	t.Helper()
	issuer, err := identity.NewSessionIssuer(testSigningKey)
	if err != nil {
		t.Fatalf("NewSessionIssuer failed: %v", err)
	}
	return issuer
}

func incomingContext(authValue string) context.Context {
	if authValue == "" {
		return context.Background()
	}
	md := metadata.Pairs(grpcauth.MetadataKeyAuthorization, authValue)
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestUnaryAuthInterceptorRequired(t *testing.T) {
	issuer := testIssuer(t)
	token, err := issuer.Issue("principal-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	expired, err := identity.NewSessionIssuer(testSigningKey,
		identity.WithSessionTTL(time.Minute),
		identity.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
	if err != nil {
		t.Fatalf("NewSessionIssuer failed: %v", err)
	}
	expiredToken, err := expired.Issue("principal-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	config := grpcauth.NewInterceptorConfig(issuer.Verify, "/reelstash.Links/PublicFeed")
	interceptor := grpcauth.UnaryAuthInterceptor(config)

	tests := []struct {
		name          string
		method        string
		authValue     string
		wantCode      codes.Code
		wantPrincipal string
	}{
		{"valid token", "/reelstash.Links/List", "Bearer " + token, codes.OK, "principal-1"},
		{"missing metadata", "/reelstash.Links/List", "", codes.Unauthenticated, ""},
		{"expired token", "/reelstash.Links/List", "Bearer " + expiredToken, codes.Unauthenticated, ""},
		{"malformed credential", "/reelstash.Links/List", "Basic abc", codes.Unauthenticated, ""},
		{"public method without token", "/reelstash.Links/PublicFeed", "", codes.OK, ""},
		{"public method with token", "/reelstash.Links/PublicFeed", "Bearer " + token, codes.OK, "principal-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPrincipal string
			handler := func(ctx context.Context, req any) (any, error) {
				gotPrincipal, _ = grpcauth.PrincipalIDFromContext(ctx)
				return "ok", nil
			}

			_, err := interceptor(incomingContext(tt.authValue), nil,
				&grpc.UnaryServerInfo{FullMethod: tt.method}, handler)

			if code := status.Code(err); code != tt.wantCode {
				t.Fatalf("code = %v, want %v (err: %v)", code, tt.wantCode, err)
			}
			if gotPrincipal != tt.wantPrincipal {
				t.Errorf("principal = %q, want %q", gotPrincipal, tt.wantPrincipal)
			}
		})
	}
}

func TestUnaryAuthInterceptorOptional(t *testing.T) {
	issuer := testIssuer(t)
	token, err := issuer.Issue("principal-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	interceptor := grpcauth.UnaryAuthInterceptor(grpcauth.OptionalAuthConfig(issuer.Verify))

	tests := []struct {
		name          string
		authValue     string
		wantPrincipal string
	}{
		{"valid token attaches principal", "Bearer " + token, "principal-1"},
		{"no metadata proceeds anonymous", "", ""},
		{"bad token proceeds anonymous", "Bearer garbage", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPrincipal string
			handler := func(ctx context.Context, req any) (any, error) {
				gotPrincipal, _ = grpcauth.PrincipalIDFromContext(ctx)
				return "ok", nil
			}

			_, err := interceptor(incomingContext(tt.authValue), nil,
				&grpc.UnaryServerInfo{FullMethod: "/reelstash.Links/List"}, handler)
			if err != nil {
				t.Fatalf("optional interceptor errored: %v", err)
			}
			if gotPrincipal != tt.wantPrincipal {
				t.Errorf("principal = %q, want %q", gotPrincipal, tt.wantPrincipal)
			}
		})
	}
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }

func TestStreamAuthInterceptor(t *testing.T) {
	issuer := testIssuer(t)
	token, err := issuer.Issue("principal-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	config := grpcauth.NewInterceptorConfig(issuer.Verify)
	interceptor := grpcauth.StreamAuthInterceptor(config)

	var gotPrincipal string
	handler := func(srv any, ss grpc.ServerStream) error {
		gotPrincipal, _ = grpcauth.PrincipalIDFromContext(ss.Context())
		return nil
	}

	stream := &fakeServerStream{ctx: incomingContext("Bearer " + token)}
	if err := interceptor(nil, stream, &grpc.StreamServerInfo{FullMethod: "/reelstash.Links/Watch"}, handler); err != nil {
		t.Fatalf("stream interceptor failed: %v", err)
	}
	if gotPrincipal != "principal-1" {
		t.Errorf("principal = %q, want principal-1", gotPrincipal)
	}

	anon := &fakeServerStream{ctx: context.Background()}
	err = interceptor(nil, anon, &grpc.StreamServerInfo{FullMethod: "/reelstash.Links/Watch"}, handler)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("anonymous stream: code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestTokenToOutgoingContext(t *testing.T) {
	ctx := grpcauth.TokenToOutgoingContext(context.Background(), "abc123")
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("no outgoing metadata attached")
	}
	values := md.Get(grpcauth.MetadataKeyAuthorization)
	if len(values) != 1 || values[0] != "Bearer abc123" {
		t.Errorf("authorization metadata = %v, want [Bearer abc123]", values)
	}
}
