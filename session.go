package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultSessionTTL matches the original product decision of
	// month-long browser sessions.
	DefaultSessionTTL = 30 * 24 * time.Hour

	// DefaultClockGrace is the only skew tolerated when checking expiry.
	DefaultClockGrace = 30 * time.Second
)

// SessionIssuer issues and verifies stateless bearer session tokens.
// A token is a signed assertion of {principal id, issued-at, expiry};
// validity is fully determined by signature and expiry, with no
// server-side state and no revocation list.
type SessionIssuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	grace      time.Duration
	now        func() time.Time
}

// SessionOption configures a SessionIssuer.
type SessionOption func(*SessionIssuer)

// WithSessionTTL overrides the token expiry horizon.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionIssuer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithIssuer sets the iss claim stamped into and required from tokens.
func WithIssuer(issuer string) SessionOption {
	return func(s *SessionIssuer) { s.issuer = strings.TrimSpace(issuer) }
}

// WithClockGrace overrides the expiry grace window.
func WithClockGrace(grace time.Duration) SessionOption {
	return func(s *SessionIssuer) {
		if grace >= 0 {
			s.grace = grace
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionIssuer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionIssuer builds an issuer around a process-wide signing key
// loaded once at startup. Rotating the key invalidates every
// outstanding session; that is an accepted property, not a bug.
func NewSessionIssuer(signingKey string, opts ...SessionOption) (*SessionIssuer, error) {
	if strings.TrimSpace(signingKey) == "" {
		return nil, fmt.Errorf("session signing key is required")
	}
	s := &SessionIssuer{
		signingKey: []byte(signingKey),
		issuer:     "reelstash",
		ttl:        DefaultSessionTTL,
		grace:      DefaultClockGrace,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for the principal, expiring one TTL from now.
func (s *SessionIssuer) Issue(principalID string) (string, error) {
	if principalID == "" {
		return "", fmt.Errorf("principal id is required")
	}
	now := s.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   principalID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded principal
// id. Every failure mode collapses to ErrInvalidToken.
func (s *SessionIssuer) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalidToken
			}
			return s.signingKey, nil
		},
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(s.grace),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
