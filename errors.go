package identity

import (
	"errors"
	"fmt"
)

// Error taxonomy for the identity subsystem. Every failure here is
// terminal for the current request; only a concurrent-create ErrConflict
// inside the federated resolver is retried internally.
var (
	// ErrConflict reports a uniqueness violation: email, username,
	// external id or legacy id already bound to another principal.
	ErrConflict = errors.New("identity: already exists")

	// ErrInvalidCredentials reports a failed password login. It is
	// deliberately uniform across "no such email", "no password set"
	// and "wrong password" so errors leak no existence oracle.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")

	// ErrInvalidToken reports a malformed, forged or expired session token.
	ErrInvalidToken = errors.New("identity: invalid token")

	// ErrUnauthenticated reports a missing or unusable bearer credential
	// on a request that requires one.
	ErrUnauthenticated = errors.New("identity: unauthenticated")

	// ErrNotFound reports a missing principal on direct lookups.
	ErrNotFound = errors.New("identity: not found")
)

// ConflictError is an ErrConflict that names the violating field, so
// callers can branch on which uniqueness constraint failed without
// parsing backend messages.
type ConflictError struct {
	// Field is "email", "username", "external_id", "legacy_id" or "id";
	// empty when the backend cannot tell.
	Field string
}

func (e *ConflictError) Error() string {
	if e.Field == "" {
		return "identity: already exists"
	}
	return fmt.Sprintf("identity: %s already exists", e.Field)
}

// Is lets errors.Is(err, ErrConflict) match a ConflictError.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ConflictField returns the violating field of a conflict error, or ""
// when the error is not a ConflictError or the field is unknown.
func ConflictField(err error) string {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Field
	}
	return ""
}
