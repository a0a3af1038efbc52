package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type principalContextKey struct{}

// ContextWithPrincipalID attaches an authenticated principal id to the context.
func ContextWithPrincipalID(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principalID)
}

// PrincipalIDFromContext returns the authenticated principal id, if any.
func PrincipalIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(principalContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// VerifyTokenFunc verifies a bearer session token and returns the
// principal id it asserts.
type VerifyTokenFunc func(tokenString string) (principalID string, err error)

// Middleware authenticates inbound HTTP requests from a bearer session
// token alone. It performs no store lookup: the token carries identity,
// trading revocation for request-path speed.
type Middleware struct {
	Verify VerifyTokenFunc

	// AuthHeader defaults to "Authorization".
	AuthHeader string
}

// EnsureSession requires a valid bearer token. A missing header or a
// token that fails verification rejects the request with a 401 JSON
// body; on success the principal id is attached to the request context.
func (m *Middleware) EnsureSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principalID, err := m.authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid or missing token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipalID(r.Context(), principalID)))
	})
}

// ExtractSession runs the same extraction but swallows failures: the
// request proceeds without a principal attached and downstream code
// branches on presence.
func (m *Middleware) ExtractSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principalID, err := m.authenticate(r); err == nil {
			r = r.WithContext(ContextWithPrincipalID(r.Context(), principalID))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) authenticate(r *http.Request) (string, error) {
	if m.Verify == nil {
		slog.Warn("no session token verifier configured")
		return "", ErrUnauthenticated
	}
	token, err := BearerToken(r.Header.Get(m.authHeader()))
	if err != nil {
		return "", err
	}
	principalID, err := m.Verify(token)
	if err != nil {
		return "", ErrUnauthenticated
	}
	return principalID, nil
}

func (m *Middleware) authHeader() string {
	if m.AuthHeader != "" {
		return m.AuthHeader
	}
	return "Authorization"
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. Returns ErrUnauthenticated when the header is missing or
// not a bearer credential.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrUnauthenticated
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrUnauthenticated
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}
